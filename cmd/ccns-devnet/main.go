package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/ccns/client"
	"github.com/ruteri/ccns/cmd/flags"
	"github.com/ruteri/ccns/devnet"
	"github.com/ruteri/ccns/dnsserver"
	"github.com/ruteri/ccns/httpserver"
	"github.com/ruteri/ccns/interfaces"
	"github.com/ruteri/ccns/storage"
	"github.com/urfave/cli/v2"
)

var deploymentsDirFlag = &cli.StringFlag{
	Name:  "deployments-dir",
	Value: "deployments",
	Usage: "directory to write <network>.json deployment records to, empty to skip",
}

var serveFlags = []cli.Flag{
	flags.ConfigFlag,
	deploymentsDirFlag,
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "dns-addr",
		Value: "",
		Usage: "UDP address to serve the DNS front-end on, empty to disable",
	},
	&cli.DurationFlag{
		Name:  "relay-interval",
		Usage: "relay pending bridge messages at this interval, overrides the topology file; 0 relays on request only",
	},
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

var apiAddrFlag = &cli.StringFlag{
	Name:  "api-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "base URL of a running devnet API",
}

var callerFlag = &cli.StringFlag{
	Name:  "caller",
	Usage: "hex address to send the transaction as",
}

func apiClient(cCtx *cli.Context) (*client.Client, error) {
	c := &client.Client{ServerAddr: cCtx.String(apiAddrFlag.Name)}
	if caller := cCtx.String(callerFlag.Name); caller != "" {
		addr, err := interfaces.ParseAddress(caller)
		if err != nil {
			return nil, err
		}
		c.Caller = addr
	}
	return c, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deploy(cCtx *cli.Context, logger *slog.Logger) (*devnet.Devnet, error) {
	configPath := cCtx.String(flags.ConfigFlag.Name)
	cfg, err := devnet.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load devnet config", "err", err, slog.String("path", configPath))
		return nil, err
	}

	net, err := devnet.Deploy(cCtx.Context, cfg, storage.NewStoreFactory(logger), logger)
	if err != nil {
		logger.Error("Failed to deploy devnet", "err", err)
		return nil, err
	}

	if dir := cCtx.String(deploymentsDirFlag.Name); dir != "" {
		if err := net.WriteRecords(dir); err != nil {
			logger.Error("Failed to write deployment records", "err", err)
			return nil, err
		}
		logger.Info("Deployment records written", slog.String("dir", dir))
	}
	return net, nil
}

func serve(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	net, err := deploy(cCtx, logger)
	if err != nil {
		return err
	}

	server, err := httpserver.New(
		flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr")),
		httpserver.NewHandler(net, logger),
	)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	var dnsServer *dnsserver.Server
	if dnsAddr := cCtx.String("dns-addr"); dnsAddr != "" {
		dnsServer = dnsserver.New(flags.ConfigureDNSServer(logger, dnsAddr), dnsserver.NewHandler(net, logger))
		dnsServer.RunInBackground()
	}

	interval := net.Config().Relayer.Interval.Duration
	if cCtx.IsSet("relay-interval") {
		interval = cCtx.Duration("relay-interval")
	}

	ctx, cancel := context.WithCancel(cCtx.Context)
	defer cancel()
	relayerDone := make(chan struct{})
	if interval > 0 {
		logger.Info("Starting relayer", slog.Duration("interval", interval))
		go func() {
			defer close(relayerDone)
			net.Bridge().Run(ctx, interval)
		}()
	} else {
		close(relayerDone)
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Devnet is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	cancel()
	<-relayerDone
	server.Shutdown()
	if dnsServer != nil {
		dnsServer.Shutdown()
	}
	logger.Info("Devnet shutdown complete")
	return nil
}

func main() {
	app := &cli.App{
		Name:  "ccns-devnet",
		Usage: "Run the cross-chain name service on a simulated multi-chain devnet",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Deploy the devnet and serve the HTTP and DNS front-ends",
				Flags:  serveFlags,
				Action: serve,
			},
			{
				Name:  "deploy",
				Usage: "Deploy the devnet, write the deployment records and exit",
				Flags: []cli.Flag{flags.ConfigFlag, deploymentsDirFlag},
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					net, err := deploy(cCtx, logger)
					if err != nil {
						return err
					}
					for _, rec := range net.Records() {
						fmt.Printf("%s\tlookup=%s\n", rec.Network, rec.CCNSLookup.Hex())
					}
					return nil
				},
			},
			{
				Name:      "register",
				Usage:     "Register a name through a running devnet API",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{apiAddrFlag, callerFlag},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return cli.Exit("name is required", 1)
					}
					c, err := apiClient(cCtx)
					if err != nil {
						return err
					}
					receipt, err := c.Register(cCtx.Context, cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(receipt)
				},
			},
			{
				Name:      "lookup",
				Usage:     "Look up a name on one network through a running devnet API",
				ArgsUsage: "<network> <name>",
				Flags:     []cli.Flag{apiAddrFlag},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 2 {
						return cli.Exit("network and name are required", 1)
					}
					c, err := apiClient(cCtx)
					if err != nil {
						return err
					}
					owner, err := c.Lookup(cCtx.Context, cCtx.Args().Get(0), cCtx.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Println(owner.Hex())
					return nil
				},
			},
			{
				Name:  "relay",
				Usage: "Run one relay pass on a running devnet",
				Flags: []cli.Flag{apiAddrFlag},
				Action: func(cCtx *cli.Context) error {
					c, err := apiClient(cCtx)
					if err != nil {
						return err
					}
					report, err := c.Relay(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
			{
				Name:      "resolve",
				Usage:     "Resolve a name through a running DNS front-end",
				ArgsUsage: "<name> [network]",
				Flags:     []cli.Flag{flags.DNSAddrFlag},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() < 1 {
						return cli.Exit("name is required", 1)
					}
					ctx, cancel := context.WithTimeout(cCtx.Context, 5*time.Second)
					defer cancel()

					owner, err := dnsserver.Resolve(ctx, cCtx.String(flags.DNSAddrFlag.Name), cCtx.Args().Get(0), cCtx.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Println(owner.Hex())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
