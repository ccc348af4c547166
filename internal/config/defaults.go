package config

const (
	defaultLibraryDir           = "~/music"
	defaultStateDir             = "~/.local/share/carat"
	defaultLogDir               = "~/.local/share/carat/logs"
	defaultOpticalDrive         = "/dev/sr0"
	defaultMinTitleSeconds      = 600
	defaultRipTimeoutSeconds    = 0
	defaultLicenseCheckHours    = 24
	defaultLosslessScore        = 1000
	defaultLossyScore           = 500
	defaultMetadataBaseURL      = "https://musicbrainz.org/ws/2"
	defaultMaxReleaseGroups     = 5
	defaultITunesBaseURL        = "https://itunes.apple.com"
	defaultCAABaseURL           = "https://coverartarchive.org"
	defaultArtTimeoutSeconds    = 45
	defaultSweepAgeHours        = 24
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		MakeMKV: MakeMKV{
			OpticalDrive:         defaultOpticalDrive,
			MinTitleSeconds:      defaultMinTitleSeconds,
			RipTimeout:           defaultRipTimeoutSeconds,
			LicenseCheckInterval: defaultLicenseCheckHours,
		},
		Scoring: Scoring{
			LosslessScore: defaultLosslessScore,
			LossyScore:    defaultLossyScore,
		},
		Metadata: Metadata{
			Enabled:          true,
			BaseURL:          defaultMetadataBaseURL,
			MaxReleaseGroups: defaultMaxReleaseGroups,
		},
		CoverArt: CoverArt{
			Enabled:        true,
			ITunesBaseURL:  defaultITunesBaseURL,
			CAABaseURL:     defaultCAABaseURL,
			TimeoutSeconds: defaultArtTimeoutSeconds,
		},
		Workspace: Workspace{
			SweepAgeHours: defaultSweepAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
