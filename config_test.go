package txfs

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadBlockSize(t *testing.T) {
	cases := []int{0, 100, 127, 65537, 65535}
	for _, bs := range cases {
		cfg := DefaultConfig()
		cfg.BlockSize = bs
		if err := cfg.Validate(); err == nil {
			t.Errorf("block_size=%d: want error, got nil", bs)
		}
	}
}

func TestValidateRejectsNoImapMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImapInline = false
	cfg.ImapExternal = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error when neither imap mode is allowed")
	}
}

func TestValidateRejectsNonPositiveCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DirectPointers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for direct_pointers=0")
	}

	cfg = DefaultConfig()
	cfg.VolumeCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for volume_count=0")
	}

	cfg = DefaultConfig()
	cfg.TaskCount = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for negative task_count")
	}
}

func TestIncompatFeaturesReflectsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeleteOpen = true
	f := cfg.incompatFeatures()
	if f&FeatureDeleteOpen == 0 {
		t.Error("delete_open=true did not set FeatureDeleteOpen")
	}
	if f&FeaturePosixAPI == 0 {
		t.Error("default posix_api=true did not set FeaturePosixAPI")
	}

	cfg.ImapExternal = false
	f = cfg.incompatFeatures()
	if f&FeatureExternalImap != 0 {
		t.Error("imap_external=false still set FeatureExternalImap")
	}
}
