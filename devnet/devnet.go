// Package devnet deploys a complete cross-chain name service topology onto
// simulated chains connected by the simulated bridge: one source chain with a
// Lookup and a Register, and any number of destination chains with a Lookup
// and a Receiver each.
package devnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ccns/bridge"
	"github.com/ruteri/ccns/interfaces"
	"github.com/ruteri/ccns/ledger"
	"github.com/ruteri/ccns/lookup"
	"github.com/ruteri/ccns/receiver"
	"github.com/ruteri/ccns/register"
	"github.com/ruteri/ccns/storage"
)

// ErrUnknownNetwork is returned for a network name that is not part of the devnet.
var ErrUnknownNetwork = errors.New("unknown network")

// Chain is one deployed network. Register and Ledger are set on the source
// chain only, Receiver on destination chains only.
type Chain struct {
	Name     string
	Selector interfaces.ChainSelector
	Router   *bridge.Router
	Lookup   *lookup.Lookup
	Register *register.Register
	Receiver *receiver.Receiver
	Ledger   *ledger.Ledger

	deployer common.Address
	nonce    uint64
}

// nextAddress returns the address of the deployer's next contract on this chain.
func (c *Chain) nextAddress() common.Address {
	addr := crypto.CreateAddress(c.deployer, c.nonce)
	c.nonce++
	return addr
}

// Record returns the deployment record of the chain.
func (c *Chain) Record() interfaces.DeploymentRecord {
	rec := interfaces.DeploymentRecord{
		Network:    c.Name,
		CCNSLookup: c.Lookup.Address(),
	}
	if c.Register != nil {
		addr := c.Register.Address()
		rec.CCNSRegister = &addr
	}
	if c.Receiver != nil {
		addr := c.Receiver.Address()
		rec.CCNSReceiver = &addr
	}
	return rec
}

// Devnet is a deployed topology.
type Devnet struct {
	cfg          *Config
	network      *bridge.Network
	source       *Chain
	destinations []*Chain
	byName       map[string]*Chain
	stores       *storage.StoreFactory
	log          *slog.Logger
}

// Deploy builds the topology described by cfg.
//
// The order follows a real rollout: source Lookup and Register, the Lookup
// bound to the Register; then per destination a Lookup and a Receiver, the
// Lookup bound to the Receiver and the Receiver bound to the Register; and
// finally every destination enabled on the Register.
func Deploy(ctx context.Context, cfg *Config, stores *storage.StoreFactory, log *slog.Logger) (*Devnet, error) {
	if log == nil {
		log = slog.Default()
	}
	if stores == nil {
		stores = storage.NewStoreFactory(log)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	network := bridge.NewNetwork(bridge.Config{
		Fees: bridge.FeeSchedule{
			BaseFee:  cfg.Fees.BaseFee,
			GasPrice: cfg.Fees.GasPrice,
			ByteFee:  cfg.Fees.ByteFee,
		},
		MaxAttempts: cfg.Relayer.MaxAttempts,
		RetryDelay:  cfg.Relayer.RetryDelay.Duration,
		Unordered:   cfg.Relayer.Unordered,
		Log:         log.With(slog.String("component", "bridge")),
	})

	d := &Devnet{
		cfg:     cfg,
		network: network,
		byName:  make(map[string]*Chain),
		stores:  stores,
		log:     log,
	}

	source, err := d.deploySource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy source chain %s: %w", cfg.Source.Name, err)
	}
	d.source = source

	for _, destCfg := range cfg.Destinations {
		dest, err := d.deployDestination(ctx, destCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to deploy destination chain %s: %w", destCfg.Name, err)
		}
		d.destinations = append(d.destinations, dest)
	}

	for i, destCfg := range cfg.Destinations {
		dest := d.destinations[i]
		if err := source.Register.EnableChain(ctx, cfg.Deployer, dest.Selector, dest.Receiver.Address(), destCfg.Strict, destCfg.GasLimit); err != nil {
			return nil, fmt.Errorf("failed to enable chain %s: %w", dest.Name, err)
		}
	}

	log.Info("Devnet deployed",
		slog.String("source", source.Name),
		slog.Int("destinations", len(d.destinations)))
	return d, nil
}

func (d *Devnet) newChain(netCfg NetworkConfig) (*Chain, interfaces.RecordStore, error) {
	router, err := d.network.AddChain(netCfg.Selector.ChainSelector(), netCfg.Router)
	if err != nil {
		return nil, nil, err
	}

	store, err := d.stores.StoreForURIs(netCfg.Stores)
	if err != nil {
		return nil, nil, err
	}

	chain := &Chain{
		Name:     netCfg.Name,
		Selector: netCfg.Selector.ChainSelector(),
		Router:   router,
		deployer: d.cfg.Deployer,
	}
	d.byName[strings.ToLower(netCfg.Name)] = chain
	return chain, store, nil
}

func (d *Devnet) deploySource(ctx context.Context) (*Chain, error) {
	chain, store, err := d.newChain(d.cfg.Source)
	if err != nil {
		return nil, err
	}
	log := d.log.With(slog.String("network", chain.Name))

	chain.Ledger = ledger.New(log)
	for _, alloc := range d.cfg.Genesis {
		if err := chain.Ledger.Mint(alloc.Account, alloc.Balance); err != nil {
			return nil, err
		}
	}

	chain.Lookup = lookup.NewLookup(chain.nextAddress(), d.cfg.Deployer, store, log)
	log.Info("CCNSLookup deployed", slog.String("address", chain.Lookup.Address().Hex()))

	chain.Register, err = register.NewRegister(register.Config{
		Address:       chain.nextAddress(),
		Owner:         d.cfg.Deployer,
		ChainSelector: chain.Selector,
		Bridge:        chain.Router,
		Lookup:        chain.Lookup,
		Ledger:        chain.Ledger,
		Suffix:        d.cfg.Suffix,
		Log:           log,
	})
	if err != nil {
		return nil, err
	}
	log.Info("CCNSRegister deployed", slog.String("address", chain.Register.Address().Hex()))

	if err := chain.Lookup.SetAuthority(ctx, d.cfg.Deployer, chain.Register.Address()); err != nil {
		return nil, err
	}
	return chain, nil
}

func (d *Devnet) deployDestination(ctx context.Context, destCfg DestinationConfig) (*Chain, error) {
	chain, store, err := d.newChain(destCfg.NetworkConfig)
	if err != nil {
		return nil, err
	}
	log := d.log.With(slog.String("network", chain.Name))

	chain.Lookup = lookup.NewLookup(chain.nextAddress(), d.cfg.Deployer, store, log)
	log.Info("CCNSLookup deployed", slog.String("address", chain.Lookup.Address().Hex()))

	chain.Receiver, err = receiver.NewReceiver(receiver.Config{
		Address:             chain.nextAddress(),
		Owner:               d.cfg.Deployer,
		Router:              chain.Router.Address(),
		Lookup:              chain.Lookup,
		SourceChainSelector: d.source.Selector,
		Log:                 log,
	})
	if err != nil {
		return nil, err
	}
	log.Info("CCNSReceiver deployed", slog.String("address", chain.Receiver.Address().Hex()))

	if err := chain.Lookup.SetAuthority(ctx, d.cfg.Deployer, chain.Receiver.Address()); err != nil {
		return nil, err
	}
	if err := chain.Receiver.SetCrossChainNameServiceAddress(ctx, d.cfg.Deployer, d.source.Register.Address()); err != nil {
		return nil, err
	}
	if err := d.network.Attach(chain.Selector, chain.Receiver.Address(), chain.Receiver); err != nil {
		return nil, err
	}
	return chain, nil
}

// Config returns the validated topology.
func (d *Devnet) Config() *Config { return d.cfg }

// Bridge returns the simulated bridge network.
func (d *Devnet) Bridge() *bridge.Network { return d.network }

// Source returns the source chain.
func (d *Devnet) Source() *Chain { return d.source }

// Destinations returns the destination chains in configuration order.
func (d *Devnet) Destinations() []*Chain { return d.destinations }

// Destination returns the destination chain called name.
func (d *Devnet) Destination(name string) (*Chain, error) {
	chain, err := d.Chain(name)
	if err != nil {
		return nil, err
	}
	if chain == d.source {
		return nil, fmt.Errorf("%w: %s is the source chain", ErrUnknownNetwork, name)
	}
	return chain, nil
}

// Chain returns the source or destination chain called name, case-insensitively.
func (d *Devnet) Chain(name string) (*Chain, error) {
	chain, ok := d.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return chain, nil
}

// Records returns the deployment record of every chain, source first.
func (d *Devnet) Records() []interfaces.DeploymentRecord {
	records := []interfaces.DeploymentRecord{d.source.Record()}
	for _, dest := range d.destinations {
		records = append(records, dest.Record())
	}
	return records
}

// WriteRecords writes one <network>.json deployment record per chain into dir.
func (d *Devnet) WriteRecords(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create deployments directory: %w", err)
	}

	for _, rec := range d.Records() {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(dir, rec.Network+".json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		d.log.Debug("Deployment record written", slog.String("path", path))
	}
	return nil
}
