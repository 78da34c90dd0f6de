// Command senseyed runs one Senseye sensing node: it scans for nearby
// devices and peers, filters and fuses observations with the rest of
// the mesh, and maintains a WorldState snapshot history.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/closedform/senseye/pkg/config"
	"github.com/closedform/senseye/pkg/floorplan"
	"github.com/closedform/senseye/pkg/gossip"
	"github.com/closedform/senseye/pkg/measurement"
	"github.com/closedform/senseye/pkg/observe"
	"github.com/closedform/senseye/pkg/pipeline"
	"github.com/closedform/senseye/pkg/worldstore"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "senseyed",
		Short: "Senseye distributed indoor-sensing node daemon",
		Long: `senseyed runs one node of a Senseye mesh: it scans nearby WiFi/BLE
devices and acoustic peers, tracks each signal path with an adaptive
Kalman filter, infers local link/device/zone beliefs, shares and fuses
those beliefs with mesh peers over gossip, and maintains a rolling
WorldState snapshot history.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("senseyed v%s\n", version)
		},
	})

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sensing pipeline",
		RunE:  runNode,
	}
	runCmd.Flags().String("node-id", "", "Unique ID for this node (required)")
	runCmd.Flags().String("config", "", "Path to a YAML config file overriding defaults")
	runCmd.Flags().String("data-dir", "./data", "Directory for floorplan and world-state history")
	runCmd.Flags().Int("gossip-port", 0, "Gossip mesh TCP port (0 = use config default)")
	runCmd.Flags().StringSlice("peer", nil, "Address of a peer to dial (repeatable)")
	runCmd.Flags().Duration("cycle-period", time.Second, "Pipeline cycle period")
	runCmd.Flags().Bool("disk-store", false, "Persist world-state history to badger instead of memory")
	runCmd.Flags().Bool("demo-scan", true, "Use the built-in synthetic scanner (no real radio hardware wired yet)")
	rootCmd.AddCommand(runCmd)

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run the calibration orchestrator once and persist the resulting floorplan",
		RunE:  runCalibrate,
	}
	calibrateCmd.Flags().String("node-id", "", "Unique ID for this node (required)")
	calibrateCmd.Flags().String("config", "", "Path to a YAML config file overriding defaults")
	calibrateCmd.Flags().String("data-dir", "./data", "Directory for floorplan and world-state history")
	calibrateCmd.Flags().StringSlice("peer", nil, "Address of a peer node to calibrate against (repeatable)")
	calibrateCmd.Flags().Bool("headless", false, "Run without interactive prompts")
	calibrateCmd.Flags().String("role", "fixed", "Node role during calibration: fixed or mobile")
	calibrateCmd.Flags().String("acoustic", "off", "Acoustic ranging mode: off, on-demand, 10m, 1h")
	rootCmd.AddCommand(calibrateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCalibrate implements spec.md §6's calibrate CLI surface: exit code 0
// on success, 1 on configuration/IO error, 2 when the calibration
// orchestrator itself fails (InsufficientNodes, InsufficientAnchors,
// AcousticFailure).
func runCalibrate(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	if nodeID == "" {
		os.Exit(1)
	}
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	peers, _ := cmd.Flags().GetStringSlice("peer")
	role, _ := cmd.Flags().GetString("role")
	acoustic, _ := cmd.Flags().GetString("acoustic")
	if role != "fixed" && role != "mobile" {
		fmt.Fprintf(os.Stderr, "invalid --role %q: must be fixed or mobile\n", role)
		os.Exit(1)
	}
	switch acoustic {
	case "off", "on-demand", "10m", "1h":
	default:
		fmt.Fprintf(os.Stderr, "invalid --acoustic %q\n", acoustic)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "parsing config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating data directory: %v\n", err)
		os.Exit(1)
	}

	log := observe.New("senseyed", observe.LevelInfo)
	fpStore := floorplan.NewFileStore(dataDir)
	node := pipeline.NewNode(nodeID, cfg, newDemoScanner(nodeID, peers), nil, worldstore.NewMemoryStore(1), fpStore, peers)

	// One scan cycle seeds the Kalman filters Calibrate reads distance
	// estimates from.
	if err := node.RunCycle(cmd.Context(), time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "scan cycle failed: %v\n", err)
		os.Exit(1)
	}

	if err := node.Calibrate(time.Now()); err != nil {
		log.Error("calibration failed", map[string]any{"err": err.Error()})
		os.Exit(2)
	}
	log.Info("calibration succeeded", map[string]any{"node_id": nodeID, "data_dir": dataDir})
	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	if nodeID == "" {
		return fmt.Errorf("--node-id is required")
	}
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	gossipPort, _ := cmd.Flags().GetInt("gossip-port")
	peers, _ := cmd.Flags().GetStringSlice("peer")
	cyclePeriod, _ := cmd.Flags().GetDuration("cycle-period")
	useDiskStore, _ := cmd.Flags().GetBool("disk-store")

	cfg := config.DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if gossipPort != 0 {
		cfg.Gossip.Port = gossipPort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := observe.New("senseyed", observe.LevelInfo)
	log.Info("starting node", map[string]any{"node_id": nodeID, "gossip_port": cfg.Gossip.Port})

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fpStore := floorplan.NewFileStore(dataDir)

	var store worldstore.Store
	if useDiskStore {
		disk, err := worldstore.NewDiskStore(worldstore.DiskOptions{DataDir: dataDir})
		if err != nil {
			return fmt.Errorf("opening world-state store: %w", err)
		}
		defer disk.Close()
		store = disk
	} else {
		store = worldstore.NewMemoryStore(64)
	}

	mesh := gossip.New(nodeID, gossip.Config{
		ListenPort:      cfg.Gossip.Port,
		MaxHopCount:     cfg.Gossip.MaxHopCount,
		MaxFrameBytes:   cfg.Gossip.MaxFrameBytes,
		DedupCapacity:   cfg.Gossip.DedupCapacity,
		DedupTTL:        cfg.Gossip.DedupTTL,
		HeartbeatPeriod: cfg.Gossip.HeartbeatInterval,
		PeerStaleAfter:  cfg.Gossip.PeerStaleAfter,
		BackoffInitial:  cfg.Gossip.ReconnectBackoffMin,
		BackoffMax:      cfg.Gossip.ReconnectBackoffMax,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := mesh.ListenAndServe(); err != nil {
			log.Error("mesh listener stopped", map[string]any{"err": err.Error()})
		}
	}()
	go mesh.Heartbeat(ctx)
	for _, addr := range peers {
		go mesh.DialPeer(ctx, addr)
	}

	node := pipeline.NewNode(nodeID, cfg, newDemoScanner(nodeID, peers), mesh, store, fpStore, peers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cyclePeriod)
	defer ticker.Stop()

	log.Info("pipeline running", map[string]any{"cycle_period": cyclePeriod.String()})
	for {
		select {
		case <-sigCh:
			log.Info("shutting down", nil)
			cancel()
			mesh.Close()
			return nil
		case now := <-ticker.C:
			if err := node.RunCycle(ctx, now); err != nil {
				log.Error("cycle failed", map[string]any{"err": err.Error()})
			}
			if stats, err := node.Stats(); err == nil {
				log.Debug("mesh stats", map[string]any{
					"peers":     stats.ConnectedPeers,
					"relayed":   stats.FramesRelayed,
					"dropped":   stats.FramesDropped,
					"malformed": stats.MalformedFrames,
				})
			}
		}
	}
}

// demoScanner synthesizes plausible WiFi measurements to the configured
// peers when no real Scanner adapter has been wired in yet (spec.md §6:
// Scanner is an external, platform-specific collaborator). It exists so
// senseyed is runnable end-to-end out of the box, mirroring the
// teacher's built-in demo test cases in cmd/eval.
type demoScanner struct {
	nodeID string
	peers  []string
	rng    *rand.Rand
	t      float64
}

func newDemoScanner(nodeID string, peers []string) *demoScanner {
	return &demoScanner{nodeID: nodeID, peers: peers, rng: rand.New(rand.NewSource(1))}
}

func (d *demoScanner) Scan(ctx context.Context) ([]measurement.Measurement, error) {
	now := time.Now()
	d.t += 1
	out := make([]measurement.Measurement, 0, len(d.peers))
	for _, p := range d.peers {
		base := -50.0 + 5*math.Sin(d.t/10)
		noise := d.rng.NormFloat64() * 1.5
		out = append(out, measurement.Measurement{
			Source:    d.nodeID,
			Target:    p,
			Kind:      measurement.KindWiFi,
			Timestamp: now,
			RSSIDBm:   base + noise,
		})
	}
	return out, nil
}
