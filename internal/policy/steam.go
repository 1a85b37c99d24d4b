package policy

// SteamPolicy implements AppPolicy for blocking Steam.
type SteamPolicy struct{}

// NewSteamPolicy creates a new Steam blocking policy.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

// ProcessPatterns returns Steam process names on macOS and Linux.
func (p *SteamPolicy) ProcessPatterns() []string {
	return []string{
		"Steam",
		"steam_osx",
		"steamwebhelper",
		"Steam Helper",
		"steam.sh",
	}
}

func (p *SteamPolicy) Category() string {
	return CategoryGames
}

// Ensure SteamPolicy implements AppPolicy.
var _ AppPolicy = (*SteamPolicy)(nil)
