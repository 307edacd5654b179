package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospect-audit/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import <businesses.yaml>",
	Short: "Import prospect businesses from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		businesses, err := loadSeedFile(args[0])
		if err != nil {
			return err
		}

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertBusinesses(ctx, businesses)
		if err != nil {
			return eris.Wrap(err, "import businesses")
		}

		zap.L().Info("import complete",
			zap.Int64("upserted", n),
			zap.String("file", args[0]),
		)
		return nil
	},
}

// seedFile accepts either a top-level "businesses" key or a bare list.
type seedFile struct {
	Businesses []model.Business `yaml:"businesses"`
}

func loadSeedFile(path string) ([]model.Business, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read seed file %s", path)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]model.Business, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse seed yaml")
	}
	if len(doc.Content) == 0 {
		return nil, eris.New("seed file is empty")
	}

	var businesses []model.Business
	switch doc.Content[0].Kind {
	case yaml.SequenceNode:
		if err := doc.Content[0].Decode(&businesses); err != nil {
			return nil, eris.Wrap(err, "decode seed list")
		}
	case yaml.MappingNode:
		var sf seedFile
		if err := doc.Content[0].Decode(&sf); err != nil {
			return nil, eris.Wrap(err, "decode seed file")
		}
		businesses = sf.Businesses
	default:
		return nil, eris.New("seed file must be a list or a mapping with a businesses key")
	}

	if len(businesses) == 0 {
		return nil, eris.New("seed file has no businesses")
	}
	if err := validateSeed(businesses); err != nil {
		return nil, err
	}
	return businesses, nil
}

var seedValidator = validator.New()

// validateSeed reports every invalid entry at once so a seed file can be
// fixed in one pass.
func validateSeed(businesses []model.Business) error {
	var problems []string
	seen := make(map[string]int, len(businesses))
	for i, b := range businesses {
		if err := seedValidator.Struct(b); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return eris.Wrap(err, "validate seed")
			}
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("entry %d: %s failed %s", i, fe.Field(), fe.Tag()))
			}
		}
		if b.ID == "" {
			continue
		}
		if prev, dup := seen[b.ID]; dup {
			problems = append(problems, fmt.Sprintf("entry %d: duplicate id %q (first at entry %d)", i, b.ID, prev))
			continue
		}
		seen[b.ID] = i
	}
	if len(problems) > 0 {
		return eris.Errorf("invalid seed file: %s", strings.Join(problems, "; "))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
