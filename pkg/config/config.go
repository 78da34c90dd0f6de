// Package config defines the tunable parameter schema shared by every
// pipeline stage (C1-C6, calibration, world state).
//
// CLI parsing and config-file loading are external collaborators per
// spec.md §6 ("out of scope"); this package only owns the schema, its
// defaults, and fail-fast validation (spec.md §7: "Configuration: invalid
// port, unknown acoustic mode -> fail fast at startup"). Grounded on the
// teacher's pkg/config, generalized from a single flat Config struct into
// one struct per component for readability, still round-trippable through
// YAML via github.com/spf13/cobra's companion gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"time"
)

// KalmanConfig tunes the adaptive Kalman bank (C1).
type KalmanConfig struct {
	ProcessNoiseQ    float64       `yaml:"process_noise_q"`
	JumpZScore       float64       `yaml:"jump_z_score"`
	JumpScaleFactor  float64       `yaml:"jump_scale_factor"`
	MinInnovationVar float64       `yaml:"min_innovation_var"`
	PathTTL          time.Duration `yaml:"path_ttl"`
	RSSIMeasVariance float64       `yaml:"rssi_measurement_variance"`
	AcousticMeasVar  float64       `yaml:"acoustic_measurement_variance"`
	RingBufferSize   int           `yaml:"ring_buffer_size"`
}

// InferenceConfig tunes local inference (C2).
type InferenceConfig struct {
	MotionVarianceThreshold float64 `yaml:"motion_variance_threshold"`
	PathLossExponentIndoor  float64 `yaml:"path_loss_exponent_indoor"`
	PathLossExponentFree    float64 `yaml:"path_loss_exponent_free"`
	PathLossInterceptA      float64 `yaml:"path_loss_intercept_a"`
	MinDistanceM            float64 `yaml:"min_distance_m"`
}

// GossipConfig tunes the gossip mesh (C3).
type GossipConfig struct {
	Port                int           `yaml:"port"`
	MaxHopCount         int           `yaml:"max_hop_count"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	PeerStaleAfter      time.Duration `yaml:"peer_stale_after"`
	DedupCapacity       int           `yaml:"dedup_capacity"`
	DedupTTL            time.Duration `yaml:"dedup_ttl"`
	MaxFrameBytes       int           `yaml:"max_frame_bytes"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	ReconnectBackoffMin time.Duration `yaml:"reconnect_backoff_min"`
	ReconnectBackoffMax time.Duration `yaml:"reconnect_backoff_max"`
}

// FusionConfig tunes consensus fusion (C4).
type FusionConfig struct {
	DisagreementPenaltyScale float64       `yaml:"disagreement_penalty_scale"`
	BeliefStaleHorizon       time.Duration `yaml:"belief_stale_horizon"`
	Epsilon                  float64       `yaml:"epsilon"`
}

// TrilaterationConfig tunes the robust solver (C5).
type TrilaterationConfig struct {
	MaxIterations     int     `yaml:"max_iterations"`
	ConvergenceTol    float64 `yaml:"convergence_tolerance"`
	LevenbergLambda   float64 `yaml:"levenberg_lambda"`
	MinSigma          float64 `yaml:"min_sigma"`
	TukeyCutoffFactor float64 `yaml:"tukey_cutoff_factor"`
	InlierRhoMax      float64 `yaml:"inlier_rho_max"`
}

// TomographyConfig tunes ridge RTI reconstruction (C6).
type TomographyConfig struct {
	CellSizeM         float64 `yaml:"cell_size_m"`
	KernelRadiusM     float64 `yaml:"kernel_radius_m"`
	RidgeConstant     float64 `yaml:"ridge_constant"`
	RidgeMin          float64 `yaml:"ridge_min"`
	RidgeMax          float64 `yaml:"ridge_max"`
	WallPeakThreshold float64 `yaml:"wall_peak_threshold_db"`
	RankTolerance     float64 `yaml:"rank_tolerance"`
}

// CalibrationConfig tunes the calibration orchestrator.
type CalibrationConfig struct {
	AcousticHopCap       int           `yaml:"acoustic_hop_cap"`
	NumAcousticBands     int           `yaml:"num_acoustic_bands"`
	BandStartHz          float64       `yaml:"band_start_hz"`
	BandWidthHz          float64       `yaml:"band_width_hz"`
	FreeSpacePathLossN   float64       `yaml:"free_space_path_loss_exponent"`
	WallDecisionThreshDB float64       `yaml:"wall_decision_threshold_db"`
	Timeout              time.Duration `yaml:"timeout"`
}

// WorldConfig tunes world-state decay and recalibration triggers.
type WorldConfig struct {
	MotionDecayLambda   float64       `yaml:"motion_decay_lambda"`
	RSSIDriftThreshold  float64       `yaml:"rssi_drift_threshold_db"`
	MinCommonDevices    int           `yaml:"min_common_devices"`
	RecalibrationPeriod time.Duration `yaml:"recalibration_period"`
}

// Config aggregates every component's tunables. Populated by the external
// CLI/config-file collaborator; the core only validates it.
type Config struct {
	Kalman        KalmanConfig        `yaml:"kalman"`
	Inference     InferenceConfig     `yaml:"inference"`
	Gossip        GossipConfig        `yaml:"gossip"`
	Fusion        FusionConfig        `yaml:"fusion"`
	Trilateration TrilaterationConfig `yaml:"trilateration"`
	Tomography    TomographyConfig    `yaml:"tomography"`
	Calibration   CalibrationConfig   `yaml:"calibration"`
	World         WorldConfig         `yaml:"world"`
}

// DefaultConfig returns the defaults named throughout spec.md §4.
func DefaultConfig() Config {
	return Config{
		Kalman: KalmanConfig{
			ProcessNoiseQ:    0.1,
			JumpZScore:       3.0,
			JumpScaleFactor:  20.0,
			MinInnovationVar: 1e-6,
			PathTTL:          30 * time.Second,
			RSSIMeasVariance: 4.0,
			AcousticMeasVar:  0.25,
			RingBufferSize:   20,
		},
		Inference: InferenceConfig{
			MotionVarianceThreshold: 4.0,
			PathLossExponentIndoor:  2.5,
			PathLossExponentFree:    2.0,
			PathLossInterceptA:      45.0,
			MinDistanceM:            0.1,
		},
		Gossip: GossipConfig{
			Port:                5483,
			MaxHopCount:          3,
			HeartbeatInterval:    time.Second,
			PeerStaleAfter:       10 * time.Second,
			DedupCapacity:        4096,
			DedupTTL:             2 * time.Minute,
			MaxFrameBytes:        1 << 20,
			ConnectTimeout:       5 * time.Second,
			ReadTimeout:          30 * time.Second,
			ReconnectBackoffMin:  500 * time.Millisecond,
			ReconnectBackoffMax:  30 * time.Second,
		},
		Fusion: FusionConfig{
			DisagreementPenaltyScale: 1.0,
			BeliefStaleHorizon:       5 * time.Second,
			Epsilon:                  1e-6,
		},
		Trilateration: TrilaterationConfig{
			MaxIterations:     50,
			ConvergenceTol:    1e-4,
			LevenbergLambda:   1e-3,
			MinSigma:          0.35,
			TukeyCutoffFactor: 2.5,
			InlierRhoMax:      2.5,
		},
		Tomography: TomographyConfig{
			CellSizeM:         1.0,
			KernelRadiusM:     1.5,
			RidgeConstant:     1.0,
			RidgeMin:          0.05,
			RidgeMax:          5.0,
			WallPeakThreshold: 8.0,
			RankTolerance:     1e-9,
		},
		Calibration: CalibrationConfig{
			AcousticHopCap:       3,
			NumAcousticBands:     6,
			BandStartHz:          17000,
			BandWidthHz:          1000,
			FreeSpacePathLossN:   2.0,
			WallDecisionThreshDB: 8.0,
			Timeout:              2 * time.Minute,
		},
		World: WorldConfig{
			MotionDecayLambda:   0.5,
			RSSIDriftThreshold:  6.0,
			MinCommonDevices:    3,
			RecalibrationPeriod: time.Hour,
		},
	}
}

// Validate fails fast on configuration errors per spec.md §7
// ("Configuration: invalid port, unknown acoustic mode -> fail fast at
// startup").
func (c Config) Validate() error {
	if c.Gossip.Port <= 0 || c.Gossip.Port > 65535 {
		return fmt.Errorf("config: invalid gossip port %d", c.Gossip.Port)
	}
	if c.Gossip.MaxHopCount < 0 {
		return fmt.Errorf("config: max hop count must be >= 0, got %d", c.Gossip.MaxHopCount)
	}
	if c.Gossip.DedupCapacity <= 0 {
		return fmt.Errorf("config: dedup capacity must be positive, got %d", c.Gossip.DedupCapacity)
	}
	if c.Kalman.RingBufferSize <= 1 {
		return fmt.Errorf("config: ring buffer size must be > 1, got %d", c.Kalman.RingBufferSize)
	}
	if c.Tomography.RidgeMin <= 0 || c.Tomography.RidgeMax < c.Tomography.RidgeMin {
		return fmt.Errorf("config: invalid ridge clip bounds [%v, %v]", c.Tomography.RidgeMin, c.Tomography.RidgeMax)
	}
	if c.Trilateration.MaxIterations <= 0 {
		return fmt.Errorf("config: trilateration max iterations must be positive, got %d", c.Trilateration.MaxIterations)
	}
	if c.Calibration.NumAcousticBands <= 0 {
		return fmt.Errorf("config: num acoustic bands must be positive, got %d", c.Calibration.NumAcousticBands)
	}
	return nil
}
