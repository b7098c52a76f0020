package drift

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// LoadGoldFile reads a gold dataset from a YAML (or JSON) file containing a
// list of {id, fields} records, one per sample:
//
//	id: invoice-001.png
//	fields:
//	  invoice_number: INV-001
//	  total_amount: "1499.00"
func LoadGoldFile(path string) ([]entity.GoldSample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold dataset: %w", err)
	}
	var samples []entity.GoldSample
	if err := yaml.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("parse gold dataset %s: %w", path, err)
	}
	return samples, nil
}
