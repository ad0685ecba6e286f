package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ethosgate/ethosgate/internal/models"
)

// readInput reads path, or stdin when path is "-"
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

// decodeRequests accepts one request or a list of requests, as JSON when the
// document starts with '{' or '[' and as YAML otherwise.
func decodeRequests(data []byte, name string) ([]models.ActionRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s: input is empty", name)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".json" || trimmed[0] == '{' || trimmed[0] == '[' {
		return decodeJSONRequests(trimmed, name)
	}
	return decodeYAMLRequests(trimmed, name)
}

func decodeJSONRequests(data []byte, name string) ([]models.ActionRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if data[0] == '[' {
		var reqs []models.ActionRequest
		if err := dec.Decode(&reqs); err != nil {
			return nil, fmt.Errorf("%s: failed to parse request list: %w", name, err)
		}
		return reqs, nil
	}

	var req models.ActionRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%s: failed to parse request: %w", name, err)
	}
	return []models.ActionRequest{req}, nil
}

func decodeYAMLRequests(data []byte, name string) ([]models.ActionRequest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", name, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%s: input is empty", name)
	}

	// re-decode with KnownFields so typos in field names are reported
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if root.Content[0].Kind == yaml.SequenceNode {
		var reqs []models.ActionRequest
		if err := dec.Decode(&reqs); err != nil {
			return nil, fmt.Errorf("%s: failed to parse request list: %w", name, err)
		}
		return reqs, nil
	}

	var req models.ActionRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%s: failed to parse request: %w", name, err)
	}
	return []models.ActionRequest{req}, nil
}

// parseAttrFlags turns key=value pairs into attributes. Values that parse as
// finite numbers become numeric attributes.
func parseAttrFlags(pairs []string) (models.Attributes, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(models.Attributes, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q (use key=value)", pair)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			attrs[key] = models.Num(f)
		} else {
			attrs[key] = models.Cat(value)
		}
	}
	return attrs, nil
}
