// Command clusterd runs a single cluster membership/coordination node:
// discovery, Bully election, role assignment, and the document-editing
// collaborators the assigned roles drive (SPEC_FULL §9).
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/edgemesh/clustercore/internal/collaborator/broker"
	"github.com/edgemesh/clustercore/internal/collaborator/editing"
	"github.com/edgemesh/clustercore/internal/collaborator/gateway"
	"github.com/edgemesh/clustercore/internal/collaborator/storage"
	"github.com/edgemesh/clustercore/internal/config"
	"github.com/edgemesh/clustercore/pkg/cluster"
	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/definition"
)

var (
	app = kingpin.New("clusterd", "Cluster membership and coordination daemon.")

	address   = app.Flag("address", "this node's IPv4 identity (auto-discovered if unset)").String()
	netmask   = app.Flag("netmask", "netmask for priority/broadcast arithmetic (auto-discovered if unset)").String()
	seeds     = app.Flag("seed", "known peer address to unicast discovery traffic to, instead of L3 broadcast (repeatable)").Strings()
	debug     = app.Flag("debug", "enable debug logging").Bool()
	gatewayBind = app.Flag("gateway-bind", "address the HTTP gateway listens on when this node holds GATEWAY").Default(":8080").String()
	brokerBind  = app.Flag("broker-bind", "address the message broker listens on when this node holds MESSAGE_BROKER").Default(":8081").String()
	storePath   = app.Flag("store", "path to the JSON document store file").Default("clusterd-store.json").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	out := colorable.NewColorableStdout()
	logger := definition.NewDefaultLogger()
	if *debug {
		logger.ToggleDebug(true)
	}

	cfg, err := config.FromEnviron()
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "clusterd: %v\n", err)
		os.Exit(1)
	}

	store := storage.New(*storePath)
	brokerServer := broker.NewServer(*brokerBind, logger)
	brokerClient := broker.NewClient(logger)
	gatewaySrv := gateway.New(*gatewayBind, logger, store)
	editingSrv := editing.New(logger)

	if err := store.Start(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(out, "clusterd: starting storage: %v\n", err)
		os.Exit(1)
	}

	node, err := cluster.New(cluster.Options{
		Address: *address,
		Netmask: *netmask,
		Config:  cfg,
		Logger:  logger,
		Seeds:   *seeds,
		Collab: collab.Set{
			BrokerServer:  brokerServer,
			BrokerClient:  brokerClient,
			Gateway:       gatewaySrv,
			EditingServer: editingSrv,
			Storage:       store,
		},
	})
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "clusterd: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := node.Start(ctx); err != nil {
		color.New(color.FgRed).Fprintf(out, "clusterd: %v\n", err)
		os.Exit(1)
	}

	color.New(color.FgGreen).Fprintf(out, "clusterd: %s (priority %d) started\n", node.Self(), node.Priority())
	watchEvents(ctx, node, out)

	<-ctx.Done()
	node.Shutdown()
}


func watchEvents(ctx context.Context, node *cluster.Node, out io.Writer) {
	go func() {
		nodes := node.Nodes()
		roles := node.Roles()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-nodes:
				if !ok {
					return
				}
				color.New(color.FgCyan).Fprintf(out, "clusterd: membership now %d node(s)\n", len(snap))
			case ev, ok := <-roles:
				if !ok {
					return
				}
				color.New(color.FgYellow).Fprintf(out, "clusterd: local roles now %v (source=%s)\n", ev.Roles.Strings(), ev.Source)
			}
		}
	}()
}
