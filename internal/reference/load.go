package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

// referenceFile is the on-disk shape, JSON or YAML:
//
//	{"medicines": [{"name": "...", "generic_name": "...", ...}]}
type referenceFile struct {
	Medicines []entity.ReferenceEntry `json:"medicines"`
}

// Load reads a reference set from a .json, .yaml, or .yml file. The
// content is validated against the reference schema before decoding;
// YAML is converted to JSON so both formats share one validation path.
func Load(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data = raw
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, common.WrapError(common.ErrReferenceFormat, fmt.Sprintf("parse yaml %s: %v", path, err))
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, common.WrapError(common.ErrReferenceFormat, fmt.Sprintf("convert yaml %s: %v", path, err))
		}
	default:
		return nil, common.WrapError(common.ErrReferenceFormat, fmt.Sprintf("unsupported reference format %q", filepath.Ext(path)))
	}

	if err := ValidateJSONAgainstSchema(BuildReferenceJSONSchema(), data); err != nil {
		return nil, common.WrapError(common.ErrReferenceFormat, err.Error())
	}

	var file referenceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, common.WrapError(common.ErrReferenceFormat, fmt.Sprintf("decode %s: %v", path, err))
	}
	return NewSet(file.Medicines)
}
