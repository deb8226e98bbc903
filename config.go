package txfs

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the recognized key set of spec.md §6.3, loaded through
// spf13/viper the way gcsfuse layers a typed struct over viper
// (SPEC_FULL.md §6.3). It may come from a map (the common case for an
// embedded target), a TOML/YAML file, or TXFS_-prefixed environment
// variables — all through the same Viper instance.
type Config struct {
	BlockSize       int  `mapstructure:"block_size"`
	VolumeCount     int  `mapstructure:"volume_count"`
	DirectPointers  int  `mapstructure:"direct_pointers"`
	IndirPointers   int  `mapstructure:"indirect_pointers"`
	InodeCount      int  `mapstructure:"inode_count"` // 0 means "auto"
	NameMax         int  `mapstructure:"name_max"`
	ReadOnly        bool `mapstructure:"read_only"`
	PosixAPI        bool `mapstructure:"posix_api"` // false selects the FSE API
	InodeTimestamps bool `mapstructure:"inode_timestamps"`
	InodeBlocks     bool `mapstructure:"inode_blocks"`
	PosixLink       bool `mapstructure:"posix_link"`
	PosixOwnerPerm  bool `mapstructure:"posix_owner_perm"`
	DeleteOpen      bool `mapstructure:"delete_open"`
	PosixSymlink    bool `mapstructure:"posix_symlink"`
	ImapInline      bool `mapstructure:"imap_inline"`
	ImapExternal    bool `mapstructure:"imap_external"`
	TaskCount       int  `mapstructure:"task_count"`
	EndianSwap      bool `mapstructure:"endian_swap"`

	SectorSize   int   `mapstructure:"sector_size"`
	SectorCount  int64 `mapstructure:"sector_count"`
	SectorOffset int64 `mapstructure:"sector_offset"`
}

// DefaultConfig matches the end-to-end scenarios of spec.md §8: 4096-byte
// blocks, 4 direct and 32 indirect pointers, the POSIX-like API, inline
// imap preferred when it fits.
func DefaultConfig() Config {
	return Config{
		BlockSize:       4096,
		VolumeCount:     1,
		DirectPointers:  4,
		IndirPointers:   32,
		NameMax:         255,
		PosixAPI:        true,
		InodeTimestamps: true,
		InodeBlocks:     true,
		PosixLink:       true,
		PosixOwnerPerm:  true,
		PosixSymlink:    true,
		ImapInline:      true,
		ImapExternal:    true,
		TaskCount:       1,
		SectorSize:      SectorSizeAuto,
		SectorCount:     SectorCountAuto,
	}
}

// LoadConfig builds a Config from v, applying DefaultConfig for any key v
// doesn't set, following the same viper.Unmarshal-over-mapstructure pattern
// gcsfuse uses for its own typed config.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v == nil {
		return cfg, cfg.Validate()
	}
	v.SetEnvPrefix("TXFS")
	v.AutomaticEnv()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, newErr("LoadConfig", Inval, err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return Config{}, newErr("LoadConfig", Inval, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects a Config that can't describe a legal volume. It is the
// single point spec.md §6.3 funnels through before Format or Mount touches
// the device.
func (c Config) Validate() error {
	if c.BlockSize < 128 || c.BlockSize > 65536 || c.BlockSize&(c.BlockSize-1) != 0 {
		return newErr("Config.Validate", Inval, fmt.Errorf("block_size %d must be a power of two in [128, 65536]", c.BlockSize))
	}
	if c.DirectPointers <= 0 || c.IndirPointers <= 0 {
		return newErr("Config.Validate", Inval, fmt.Errorf("direct_pointers and indirect_pointers must be positive"))
	}
	if c.NameMax <= 0 || c.NameMax > 255 {
		return newErr("Config.Validate", Inval, fmt.Errorf("name_max %d out of range", c.NameMax))
	}
	if !c.ImapInline && !c.ImapExternal {
		return newErr("Config.Validate", Inval, fmt.Errorf("at least one of imap_inline, imap_external must be allowed"))
	}
	if c.VolumeCount <= 0 {
		return newErr("Config.Validate", Inval, fmt.Errorf("volume_count must be positive"))
	}
	if c.TaskCount <= 0 {
		return newErr("Config.Validate", Inval, fmt.Errorf("task_count must be positive"))
	}
	return nil
}

func (c Config) incompatFeatures() IncompatFeature {
	var f IncompatFeature
	if c.PosixAPI {
		f |= FeaturePosixAPI
	}
	if c.InodeTimestamps {
		f |= FeatureInodeTimestamps
	}
	if c.InodeBlocks {
		f |= FeatureInodeBlocks
	}
	if c.PosixLink {
		f |= FeaturePosixLink
	}
	if c.PosixOwnerPerm {
		f |= FeaturePosixOwnerPerm
	}
	if c.DeleteOpen {
		f |= FeatureDeleteOpen
	}
	if c.PosixSymlink {
		f |= FeaturePosixSymlink
	}
	if c.ImapExternal {
		f |= FeatureExternalImap
	}
	return f
}
