package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Roster sind die Stammdaten aus config/roster.yaml.
type Roster struct {
	Competitors []RosterCompetitor `yaml:"competitors"`
	Molecules   []RosterMolecule   `yaml:"molecules"`
}

type RosterCompetitor struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type RosterMolecule struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`
}

// RedundantAlias ist ein Alias, der einen kürzeren Alias desselben Wettbewerbers enthält.
// Beide würden auf dieselbe Affiliation anschlagen.
type RedundantAlias struct {
	Competitor string
	Alias      string
	CoveredBy  string
}

// LoadRoster liest die Stammdaten aus einer YAML-Datei.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster dekodiert und prüft die Stammdaten.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("roster: invalid YAML: %w", err)
	}
	for i, c := range r.Competitors {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("roster: competitor #%d has no name", i+1)
		}
	}
	for i, m := range r.Molecules {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("roster: molecule #%d has no name", i+1)
		}
	}
	return &r, nil
}

// AliasesOf liefert den kanonischen Namen und alle Aliase ohne exakte Duplikate.
func (c RosterCompetitor) AliasesOf() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range append([]string{c.Name}, c.Aliases...) {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// RedundantAliases findet Aliase, die wegen der Teilstring-Suche überflüssig sind.
func (r *Roster) RedundantAliases() []RedundantAlias {
	var out []RedundantAlias
	for _, c := range r.Competitors {
		aliases := c.AliasesOf()
		for _, long := range aliases {
			for _, short := range aliases {
				if long == short {
					continue
				}
				ls, ll := strings.ToLower(short), strings.ToLower(long)
				if len(ls) < len(ll) && strings.Contains(ll, ls) {
					out = append(out, RedundantAlias{Competitor: c.Name, Alias: long, CoveredBy: short})
					break
				}
			}
		}
	}
	return out
}

// SeedRoster legt Wettbewerber, Aliase und Wirkstoffe an. Vorhandenes bleibt erhalten.
func SeedRoster(ctx context.Context, store *Store, r *Roster, logger *zap.Logger) error {
	for _, ra := range r.RedundantAliases() {
		logger.Warn("Redundanter Alias, trifft bereits über einen kürzeren",
			zap.String("competitor", ra.Competitor),
			zap.String("alias", ra.Alias),
			zap.String("covered_by", ra.CoveredBy))
	}

	for _, c := range r.Competitors {
		aliases := c.AliasesOf()
		if _, err := store.UpsertCompetitor(ctx, c.Name, aliases); err != nil {
			return fmt.Errorf("seed competitor %s: %w", c.Name, err)
		}
		logger.Debug("Wettbewerber geladen", zap.String("competitor", c.Name), zap.Int("aliases", len(aliases)))
	}
	for _, m := range r.Molecules {
		if _, err := store.UpsertMolecule(ctx, m.Name, m.Synonyms); err != nil {
			return fmt.Errorf("seed molecule %s: %w", m.Name, err)
		}
	}

	logger.Info("Stammdaten geladen",
		zap.Int("competitors", len(r.Competitors)),
		zap.Int("molecules", len(r.Molecules)))
	return nil
}
