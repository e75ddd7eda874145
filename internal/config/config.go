// Package config loads the chart of accounts, the tax categories, the
// heuristic booking rules and the export checks from a YAML reference file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zombor/belegflow/internal/accounting"
	"github.com/zombor/belegflow/internal/preflight"
)

// Settings is the loaded reference configuration.
type Settings struct {
	Reference accounting.Reference
	Rules     []accounting.Rule
	Preflight preflight.Config
}

type fileFormat struct {
	Accounts        []accounting.AccountDefinition     `yaml:"accounts"`
	TaxCategories   []accounting.TaxCategoryDefinition `yaml:"tax_categories"`
	Rules           []accounting.RuleSpec              `yaml:"rules"`
	DefaultAccount  string                             `yaml:"default_account"`
	ZeroRateAccount string                             `yaml:"zero_rate_account"`
	CreditAccount   string                             `yaml:"credit_account"`
	InvoicePrefix   string                             `yaml:"invoice_prefix"`
	Preflight       preflight.Config                   `yaml:"preflight"`
}

func defaults() fileFormat {
	ref := accounting.DefaultReference()
	return fileFormat{
		Accounts:        ref.Accounts,
		TaxCategories:   ref.TaxCategories,
		Rules:           accounting.DefaultRuleSpecs(),
		DefaultAccount:  ref.DefaultAccountID,
		ZeroRateAccount: ref.ZeroRateAccountID,
		CreditAccount:   ref.CreditAccount,
		InvoicePrefix:   ref.InvoicePrefix,
		Preflight:       preflight.DefaultConfig(),
	}
}

// Default returns the built-in settings.
func Default() Settings {
	s, err := build(defaults())
	if err != nil {
		panic(fmt.Sprintf("built-in reference is invalid: %v", err))
	}
	return s
}

// Load reads settings from path. Sections missing from the file keep their
// built-in values. An empty path yields Default().
func Load(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, fmt.Errorf("opening reference file: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return Settings{}, fmt.Errorf("loading reference file %s: %w", path, err)
	}
	return s, nil
}

// Parse reads settings from YAML. Unknown keys are rejected.
func Parse(r io.Reader) (Settings, error) {
	ff := defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("decoding yaml: %w", err)
	}
	return build(ff)
}

func build(ff fileFormat) (Settings, error) {
	ref := accounting.Reference{
		Accounts:          ff.Accounts,
		TaxCategories:     ff.TaxCategories,
		DefaultAccountID:  ff.DefaultAccount,
		ZeroRateAccountID: ff.ZeroRateAccount,
		CreditAccount:     ff.CreditAccount,
		InvoicePrefix:     ff.InvoicePrefix,
	}
	if err := validate(ref, ff); err != nil {
		return Settings{}, err
	}

	rules, err := accounting.CompileRules(ff.Rules)
	if err != nil {
		return Settings{}, fmt.Errorf("compiling rules: %w", err)
	}

	return Settings{Reference: ref, Rules: rules, Preflight: ff.Preflight}, nil
}

func validate(ref accounting.Reference, ff fileFormat) error {
	var errs []error

	if len(ref.Accounts) == 0 {
		errs = append(errs, errors.New("no accounts defined"))
	}
	for _, a := range ref.Accounts {
		for _, t := range a.TaxCategories {
			if _, ok := ref.TaxCategory(t); !ok {
				errs = append(errs, fmt.Errorf("account %s: unknown tax category %q", a.ID, t))
			}
		}
	}
	for name, id := range map[string]string{"default_account": ref.DefaultAccountID, "zero_rate_account": ref.ZeroRateAccountID} {
		if _, ok := ref.Account(id); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown account %q", name, id))
		}
	}
	if ref.CreditAccount == "" {
		errs = append(errs, errors.New("credit_account is required"))
	}
	if ref.InvoicePrefix == "" {
		errs = append(errs, errors.New("invoice_prefix is required"))
	}
	for i, r := range ff.Rules {
		if _, ok := ref.Account(r.AccountID); !ok {
			errs = append(errs, fmt.Errorf("rule %d: unknown account %q", i, r.AccountID))
			continue
		}
		if r.TaxCategory != "" && !ref.AllowsTaxCategory(r.AccountID, r.TaxCategory) {
			errs = append(errs, fmt.Errorf("rule %d: tax category %q not allowed on account %s", i, r.TaxCategory, r.AccountID))
		}
	}
	if ff.Preflight.SumWarningTolerance < 0 || ff.Preflight.SumBlockerTolerance < ff.Preflight.SumWarningTolerance {
		errs = append(errs, errors.New("preflight: tolerances must satisfy 0 <= warning <= blocker"))
	}

	return errors.Join(errs...)
}
