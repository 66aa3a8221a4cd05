package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CompanyProfile holds the issuing company and bank details rendered on
// invoice documents. It is loaded once at startup from a YAML file; the
// engine treats it as read-only.
type CompanyProfile struct {
	Name      string `yaml:"name"`
	Address   string `yaml:"address"`
	Email     string `yaml:"email"`
	Phone     string `yaml:"phone"`
	VATNumber string `yaml:"vat_number"`
	Bank      struct {
		AccountHolder string `yaml:"account_holder"`
		IBAN          string `yaml:"iban"`
		BIC           string `yaml:"bic"`
	} `yaml:"bank"`
}

// LoadCompanyProfile reads the company profile from the given YAML file.
// A missing file is not an error; document rendering falls back to an
// empty profile.
func LoadCompanyProfile(path string) (CompanyProfile, error) {
	var profile CompanyProfile

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profile, nil
		}
		return profile, fmt.Errorf("read company profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse company profile: %w", err)
	}

	return profile, nil
}
