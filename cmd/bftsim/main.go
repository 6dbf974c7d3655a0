// Command bftsim runs a deterministic BFT consensus simulation: it
// builds a validator set from a config file, wires them to a shared
// virtual network, drives the simulation to completion, and writes the
// resulting trace log.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tolelom/bftsim/config"
	"github.com/tolelom/bftsim/crypto"
	"github.com/tolelom/bftsim/events"
	"github.com/tolelom/bftsim/indexer"
	"github.com/tolelom/bftsim/keyring"
	"github.com/tolelom/bftsim/metrics"
	"github.com/tolelom/bftsim/netsim"
	"github.com/tolelom/bftsim/node"
	"github.com/tolelom/bftsim/storage"
	"github.com/tolelom/bftsim/telemetry"
	"github.com/tolelom/bftsim/tracelog"
	"github.com/tolelom/bftsim/wallet"
)

// simTransport adapts *netsim.Simulator to node.Transport.
type simTransport struct {
	sim *netsim.Simulator
}

func (t simTransport) SendMessage(sender, receiver string, msg netsim.Message) {
	t.sim.SendMessage(sender, receiver, msg)
}
func (t simTransport) SendHeader(sender, receiver string, header netsim.BlockHeader) {
	t.sim.SendHeader(sender, receiver, header)
}
func (t simTransport) SendBody(sender, receiver string, body netsim.BlockBody) {
	t.sim.SendBody(sender, receiver, body)
}
func (t simTransport) AcceptHeader(receiver, blockHash string) {
	t.sim.AcceptHeader(receiver, blockHash)
}
func (t simTransport) CurrentTime() float64 { return t.sim.CurrentTime() }

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	outPath := flag.String("out", "trace.log", "path to write the trace log")
	keyPath := flag.String("key", "", "path to a keystore file to generate (with -genkey)")
	genKey := flag.Bool("genkey", false, "generate a standalone validator key and exit")
	flag.Parse()

	if *genKey {
		runGenKey(*keyPath)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := telemetry.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer logger.Sync()

	traceFile, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("open trace log: %v", err)
	}
	defer traceFile.Close()
	trace := tracelog.New(traceFile)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Sugar().Warnf("metrics server stopped: %v", err)
			}
		}()
		logger.Sugar().Infof("metrics listening on %s", cfg.MetricsAddr)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/index")
	if err != nil {
		log.Fatalf("open index db: %v", err)
	}
	defer db.Close()

	emitter := events.NewEmitter(logger)
	idx := indexer.New(db, emitter, logger)

	netCfg := netsim.Config{
		Seed:                 cfg.Simulation.Seed,
		MinDelay:             cfg.Network.MinDelay,
		MaxDelay:             cfg.Network.MaxDelay,
		DropProb:             cfg.Network.DropProb,
		DuplicateProb:        cfg.Network.DuplicateProb,
		MaxMessagesPerSecond: cfg.Network.RateLimit.MaxMessagesPerSecond,
		BlockDuration:        cfg.Network.RateLimit.BlockDuration,
	}
	sim := netsim.New(netCfg, trace, m)
	transport := simTransport{sim: sim}

	nodes := buildValidators(cfg, transport, emitter, m, logger)
	for _, n := range nodes {
		sim.RegisterNode(n.ID, n)
	}

	logger.Sugar().Infof("starting simulation: %d validators, seed=%d, max_time=%.1f", len(nodes), cfg.Simulation.Seed, cfg.Simulation.MaxTime)
	nodes[0].StartConsensus()
	sim.Run(cfg.Simulation.MaxTime)

	for _, n := range nodes {
		hash, ok := n.FinalizedBlockHash(1)
		logger.Sugar().Infof("%s: finalized_height=%d height1_hash=%s (indexed=%v)", n.ID, n.FinalizedHeight(), hash, ok)
	}
	if canonical, ok := idx.GetFinalizedHash(1); ok {
		logger.Sugar().Infof("canonical height-1 hash recorded by indexer: %s", canonical)
	}
	logger.Sugar().Infof("trace log written to %s", *outPath)
}

func runGenKey(keyPath string) {
	if keyPath == "" {
		keyPath = "validator.key"
	}
	password := os.Getenv("BFTSIM_PASSWORD")
	if password == "" {
		log.Println("WARNING: BFTSIM_PASSWORD not set; keystore will use an empty password")
	}
	w, err := wallet.Generate()
	if err != nil {
		log.Fatal(err)
	}
	if err := keyring.SaveKey(keyPath, password, w.PrivKey()); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Generated key. Public key (validator identity): %s\n", w.PubKey())
	fmt.Printf("Saved to: %s\n", keyPath)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("config file not found at %s, using a 4-node default", path)
			cfg := config.DefaultConfig()
			cfg.Nodes = []string{"A", "B", "C", "D"}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// buildValidators derives every node's key pair deterministically from
// (Simulation.Seed, ID), wires it to transport, and connects it to
// every other validator as a peer — a full mesh, matching the source
// this was distilled from, which has no partial-connectivity topology
// concept.
func buildValidators(cfg *config.Config, transport node.Transport, emitter *events.Emitter, m *metrics.Metrics, logger *zap.Logger) []*node.Node {
	validators := make([]string, len(cfg.Nodes))
	privs := make([]crypto.PrivateKey, len(cfg.Nodes))
	for i, id := range cfg.Nodes {
		priv, pub := crypto.DeriveKeyPair(fmt.Sprintf("%d:%s", cfg.Simulation.Seed, id))
		privs[i] = priv
		validators[i] = pub.Hex()
	}

	retry := cfg.Consensus.RetryCount
	nodes := make([]*node.Node, len(cfg.Nodes))
	for i, id := range cfg.Nodes {
		nodes[i] = node.New(id, privs[i], validators, transport, emitter, m, logger, retry)
	}
	for i := range nodes {
		for j := range nodes {
			if i != j {
				nodes[i].AddPeer(nodes[j].ID)
			}
		}
	}
	return nodes
}
