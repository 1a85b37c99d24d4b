package policy

// Dota2Policy implements AppPolicy for blocking Dota 2.
type Dota2Policy struct{}

// NewDota2Policy creates a new Dota 2 blocking policy.
func NewDota2Policy() *Dota2Policy {
	return &Dota2Policy{}
}

func (p *Dota2Policy) ID() string {
	return "dota2"
}

func (p *Dota2Policy) Name() string {
	return "Dota 2"
}

// ProcessPatterns returns Dota 2 process names.
func (p *Dota2Policy) ProcessPatterns() []string {
	return []string{
		"dota2",
		"dota_osx64",
		"Dota 2",
		"dota2_launcher",
	}
}

func (p *Dota2Policy) Category() string {
	return CategoryGames
}

// Ensure Dota2Policy implements AppPolicy.
var _ AppPolicy = (*Dota2Policy)(nil)
