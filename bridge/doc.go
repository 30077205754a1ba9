// Package bridge simulates a CCIP-style cross-chain messaging network.
//
// Every chain gets a Router that quotes fees and stages outbound messages
// (interfaces.Bridge). Staged messages are held back until the sender commits
// or discards them. Committed messages wait in the network until a relayer
// pass delivers them to the receiver attached on the destination chain:
//
//	net := bridge.NewNetwork(bridge.Config{MaxAttempts: 3, Log: logger})
//	src, _ := net.AddChain(sepoliaSelector, sepoliaRouter)
//	_, _ = net.AddChain(fujiSelector, fujiRouter)
//	_ = net.Attach(fujiSelector, receiverAddr, receiver)
//	id, _ := src.Send(ctx, fujiSelector, msg)
//	_ = src.Commit(ctx, []interfaces.MessageID{id})
//	report, _ := net.Relay(ctx)
//
// Delivery is asynchronous and carries no ordering guarantee when
// Config.Unordered is set. A failed delivery ends in the Failure state and is
// never reported back to the source chain; ManualExecute retries it.
//
// MockBridge is a testify mock of interfaces.Bridge for unit tests.
package bridge
