package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"trading-analyticsv1/internal/model"
)

//go:embed universe.yaml
var defaultUniverse []byte

// ErrInvalidUniverse wraps every universe validation failure.
var ErrInvalidUniverse = errors.New("invalid instrument universe")

var validate = validator.New()

// LoadUniverse reads the instrument universe from path, or the embedded
// default when path is empty.
func LoadUniverse(path string) (*model.Universe, error) {
	data := defaultUniverse
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read universe %s: %w", path, err)
		}
		data = b
	}
	return ParseUniverse(data)
}

// ParseUniverse decodes YAML, fills defaults and validates.
func ParseUniverse(data []byte) (*model.Universe, error) {
	u := &model.Universe{}
	if err := yaml.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUniverse, err)
	}
	if err := defaults.Set(u); err != nil {
		return nil, fmt.Errorf("universe defaults: %w", err)
	}
	if err := validate.Struct(u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUniverse, err)
	}
	if err := checkReferences(u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUniverse, err)
	}
	return u, nil
}

// checkReferences verifies cross-field references the struct tags cannot
// express.
func checkReferences(u *model.Universe) error {
	known := u.ProcessingSet()
	seen := make(map[int64]string, len(known))
	for _, in := range u.Processing() {
		if prev, dup := seen[in.Token]; dup {
			return fmt.Errorf("token %d listed for both %s and %s", in.Token, prev, in.Symbol)
		}
		seen[in.Token] = in.Symbol
	}
	if _, clash := known[u.VIX.Token]; clash {
		return fmt.Errorf("vix token %d is also a processing instrument", u.VIX.Token)
	}
	for _, s := range u.Sectors {
		for _, tok := range s.Tokens {
			if _, ok := known[tok]; !ok {
				return fmt.Errorf("sector %s: unknown token %d", s.Name, tok)
			}
		}
	}
	for _, tok := range []int64{u.Market.Nifty, u.Market.BankNifty, u.Market.FinNifty} {
		if _, ok := known[tok]; !ok {
			return fmt.Errorf("market blend: unknown token %d", tok)
		}
	}
	for _, a := range u.AlertSymbols {
		if _, ok := known[a.Token]; !ok {
			return fmt.Errorf("alert symbol %s: unknown token %d", a.Symbol, a.Token)
		}
	}
	return nil
}
