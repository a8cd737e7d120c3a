package matches

import "time"

// Option applies a configuration option to the Parser.
type Option func(*Parser)

// WithPolicy selects what happens to malformed rows.
func WithPolicy(policy Policy) Option {
	return func(p *Parser) {
		p.policy = policy
	}
}

// WithStrictWinner rejects winner markers other than "Player 1" and "Player 2".
// When disabled, anything that is not "Player 1" counts as a player 2 win.
func WithStrictWinner(strict bool) Option {
	return func(p *Parser) {
		p.strictWinner = strict
	}
}

// WithDateLayouts replaces the accepted date layouts. Empty input is ignored.
func WithDateLayouts(layouts ...string) Option {
	return func(p *Parser) {
		if len(layouts) > 0 {
			p.layouts = append([]string(nil), layouts...)
		}
	}
}

// WithLocation sets the zone used for dates that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}
