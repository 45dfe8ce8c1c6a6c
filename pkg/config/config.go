// Package config holds the engine's creation-time configuration: ABI
// version expectations, the three Limits bundles (drawlist, event
// queue, diff renderer), text policy, scheduling target, feature
// toggles, and capability force/suppress masks (spec §6 create). It
// keeps the teacher's yaml.v3 + pflag merge idiom (LoadConfig /
// MergeFlags / Save / Print) generalized from VibeTunnel's
// server/security/ngrok settings to this engine's ABI-facing knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/vtengine/core/internal/textmetrics"
	"github.com/vtengine/core/pkg/cellbuf"
	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/drawlist"
	"github.com/vtengine/core/pkg/vterr"
)

const configOp = "config.Load"

// ABIVersion is the three-part engine ABI version a host requests and
// the engine itself reports (spec §6 "Config declares requested ABI
// major/minor/patch").
type ABIVersion struct {
	Major uint32 `yaml:"major"`
	Minor uint32 `yaml:"minor"`
	Patch uint32 `yaml:"patch"`
}

// EngineABIVersion is the version this build implements.
var EngineABIVersion = ABIVersion{Major: 1, Minor: 0, Patch: 0}

const DrawlistWireVersion = 1
const EventBatchWireVersion = 1

// QueueLimits bundles the event queue's fixed capacity and payload
// arena sizing (spec §3 "Event queue").
type QueueLimits struct {
	Capacity     int `yaml:"capacity"`
	ArenaInitial int `yaml:"arena_initial"`
	ArenaMax     int `yaml:"arena_max"`
}

// Features toggles optional engine behavior that is otherwise safe to
// enable unconditionally.
type Features struct {
	ScrollRegionOptimization bool `yaml:"scroll_region_optimization"`
	RowHashReuse             bool `yaml:"row_hash_reuse"`
}

// CapsOverride force-sets or suppresses individual capability bits
// independent of whatever the backend reports (spec §6 "optional
// capability force/suppress masks").
type CapsOverride struct {
	ForceColorMode       *diffrender.ColorMode `yaml:"force_color_mode,omitempty"`
	ForceScrollRegion    *bool                 `yaml:"force_scroll_region,omitempty"`
	SuppressScrollRegion bool                  `yaml:"suppress_scroll_region"`
	ForceSyncUpdate      *bool                 `yaml:"force_sync_update,omitempty"`
	SuppressSyncUpdate   bool                  `yaml:"suppress_sync_update"`
	ForceHyperlinks      *bool                 `yaml:"force_hyperlinks,omitempty"`
	SuppressHyperlinks   bool                  `yaml:"suppress_hyperlinks"`
}

// Config is the engine's create() argument (spec §6).
type Config struct {
	RequestedABI      ABIVersion `yaml:"requested_abi"`
	DrawlistVersion   uint32     `yaml:"drawlist_version"`
	EventBatchVersion uint32     `yaml:"event_batch_version"`

	DrawlistLimits   drawlist.Limits   `yaml:"drawlist_limits"`
	DiffRenderLimits diffrender.Limits `yaml:"diffrender_limits"`
	QueueLimits      QueueLimits       `yaml:"queue_limits"`

	TabWidth    int                     `yaml:"tab_width"`
	WidthPolicy textmetrics.WidthPolicy `yaml:"width_policy"`

	TargetFPS int `yaml:"target_fps"`

	Features     Features     `yaml:"features"`
	CapsOverride CapsOverride `yaml:"caps_override"`
}

// DefaultConfig returns conservative, documented defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestedABI:      EngineABIVersion,
		DrawlistVersion:   DrawlistWireVersion,
		EventBatchVersion: EventBatchWireVersion,
		DrawlistLimits:    drawlist.DefaultLimits(),
		DiffRenderLimits: diffrender.Limits{
			OutMaxBytesPerFrame: 1 << 20,
			MaxDamageRects:      4096,
		},
		QueueLimits: QueueLimits{
			Capacity:     4096,
			ArenaInitial: 64 << 10,
			ArenaMax:     4 << 20,
		},
		TabWidth:    8,
		WidthPolicy: textmetrics.PolicyEmojiNarrow,
		TargetFPS:   60,
		Features: Features{
			ScrollRegionOptimization: true,
			RowHashReuse:             true,
		},
	}
}

// Validate rejects an invalid-argument config before any engine
// resource is allocated (spec §6 "no partial effects").
func (c *Config) Validate() error {
	if c.RequestedABI.Major != EngineABIVersion.Major {
		return vterr.New(configOp, vterr.KindUnsupported,
			"requested ABI major %d unsupported by engine major %d", c.RequestedABI.Major, EngineABIVersion.Major)
	}
	if c.DrawlistVersion != DrawlistWireVersion {
		return vterr.New(configOp, vterr.KindUnsupported, "unsupported drawlist wire version %d", c.DrawlistVersion)
	}
	if c.EventBatchVersion != EventBatchWireVersion {
		return vterr.New(configOp, vterr.KindUnsupported, "unsupported event batch wire version %d", c.EventBatchVersion)
	}
	if c.QueueLimits.Capacity <= 0 {
		return vterr.New(configOp, vterr.KindInvalidArgument, "queue capacity must be positive, got %d", c.QueueLimits.Capacity)
	}
	if c.QueueLimits.ArenaMax < c.QueueLimits.ArenaInitial {
		return vterr.New(configOp, vterr.KindInvalidArgument, "arena_max %d smaller than arena_initial %d", c.QueueLimits.ArenaMax, c.QueueLimits.ArenaInitial)
	}
	if c.TargetFPS <= 0 {
		return vterr.New(configOp, vterr.KindInvalidArgument, "target_fps must be positive, got %d", c.TargetFPS)
	}
	if c.TabWidth <= 0 {
		return vterr.New(configOp, vterr.KindInvalidArgument, "tab_width must be positive, got %d", c.TabWidth)
	}
	if c.DrawlistLimits.MaxClipDepth <= 0 || c.DrawlistLimits.MaxClipDepth > 64 {
		return vterr.New(configOp, vterr.KindInvalidArgument, "clip depth %d outside (0,64]", c.DrawlistLimits.MaxClipDepth)
	}
	return nil
}

// ApplyOverride produces the effective capability snapshot the engine
// uses, starting from what the backend reports and applying this
// config's force/suppress masks on top (spec §9 "capability probing
// itself is out of the core's scope"; overriding its result is in
// scope).
func (c *Config) ApplyOverride(reported diffrender.Caps) diffrender.Caps {
	eff := reported
	o := c.CapsOverride
	if o.ForceColorMode != nil {
		eff.ColorMode = *o.ForceColorMode
	}
	if o.ForceScrollRegion != nil {
		eff.SupportsScrollRegion = *o.ForceScrollRegion
	}
	if o.SuppressScrollRegion {
		eff.SupportsScrollRegion = false
	}
	if o.ForceSyncUpdate != nil {
		eff.SupportsSyncUpdate = *o.ForceSyncUpdate
	}
	if o.SuppressSyncUpdate {
		eff.SupportsSyncUpdate = false
	}
	if o.ForceHyperlinks != nil {
		eff.SupportsHyperlinks = *o.ForceHyperlinks
	}
	if o.SuppressHyperlinks {
		eff.SupportsHyperlinks = false
	}
	return eff
}

// TextPolicy builds the drawlist executor's TextPolicy from this
// config, using style as the executor's CLEAR/default fill style.
func (c *Config) TextPolicy(style cellbuf.Style) drawlist.TextPolicy {
	return drawlist.TextPolicy{
		TabWidth:     c.TabWidth,
		WidthPolicy:  c.WidthPolicy,
		DefaultStyle: style,
	}
}

// LoadConfig loads configuration from file, writing a default config
// alongside it if none exists yet.
func LoadConfig(filename string) *Config {
	cfg := DefaultConfig()

	if filename == "" {
		return cfg
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		fmt.Printf("Warning: failed to create config directory: %v\n", err)
		return cfg
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: failed to read config file: %v\n", err)
		}
		if err := cfg.Save(filename); err != nil {
			fmt.Printf("Warning: failed to save default config: %v\n", err)
		}
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		fmt.Printf("Warning: failed to parse config file: %v\n", err)
		return DefaultConfig()
	}

	return cfg
}

// Save saves the configuration to file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// MergeFlags merges command-line overrides into the configuration,
// only touching fields the user actually set.
func (c *Config) MergeFlags(flags *pflag.FlagSet) {
	if flags.Changed("target-fps") {
		if val, err := flags.GetInt("target-fps"); err == nil {
			c.TargetFPS = val
		}
	}
	if flags.Changed("tab-width") {
		if val, err := flags.GetInt("tab-width"); err == nil {
			c.TabWidth = val
		}
	}
	if flags.Changed("queue-capacity") {
		if val, err := flags.GetInt("queue-capacity"); err == nil {
			c.QueueLimits.Capacity = val
		}
	}
	if flags.Changed("max-drawlist-bytes") {
		if val, err := flags.GetUint32("max-drawlist-bytes"); err == nil {
			c.DrawlistLimits.MaxTotalBytes = val
		}
	}
	if flags.Changed("out-max-bytes-per-frame") {
		if val, err := flags.GetInt("out-max-bytes-per-frame"); err == nil {
			c.DiffRenderLimits.OutMaxBytesPerFrame = val
		}
	}
	if flags.Changed("scroll-region-opt") {
		if val, err := flags.GetBool("scroll-region-opt"); err == nil {
			c.Features.ScrollRegionOptimization = val
		}
	}
	if flags.Changed("suppress-sync-update") {
		if val, err := flags.GetBool("suppress-sync-update"); err == nil {
			c.CapsOverride.SuppressSyncUpdate = val
		}
	}
	if flags.Changed("suppress-scroll-region") {
		if val, err := flags.GetBool("suppress-scroll-region"); err == nil {
			c.CapsOverride.SuppressScrollRegion = val
		}
	}
}

// Print displays the current configuration.
func (c *Config) Print() {
	fmt.Println("vtengine Configuration:")
	fmt.Printf("  ABI: %d.%d.%d\n", c.RequestedABI.Major, c.RequestedABI.Minor, c.RequestedABI.Patch)
	fmt.Printf("  Drawlist version: %d, Event batch version: %d\n", c.DrawlistVersion, c.EventBatchVersion)
	fmt.Println("\nLimits:")
	fmt.Printf("  Drawlist: %+v\n", c.DrawlistLimits)
	fmt.Printf("  DiffRender: %+v\n", c.DiffRenderLimits)
	fmt.Printf("  Queue: %+v\n", c.QueueLimits)
	fmt.Println("\nScheduling:")
	fmt.Printf("  Target FPS: %d\n", c.TargetFPS)
	fmt.Println("\nFeatures:")
	fmt.Printf("  Scroll region optimization: %t\n", c.Features.ScrollRegionOptimization)
	fmt.Printf("  Row hash reuse: %t\n", c.Features.RowHashReuse)
}
