package generator

import (
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/compiler/protogen"

	"github.com/upb-gen/protoc-gen-upb/logger"
)

// PluginSettings is the parsed form of CodeGeneratorRequest.parameter "a
// single optional parameter fasttable" plus the profile/debug_json
// extensions.
type PluginSettings struct {
	FastTable    bool
	ProfilePath  string
	DebugJSONDir string
}

const (
	keyFastTable   = "fasttable"
	keyProfile     = "profile"
	keyDebugJSON   = "debug_json"
	trueVal        = "true"
)

// NewPluginSettingsFromPlugin parses p.Request.GetParameter(), a comma-
// separated key=value string. A bare "fasttable" with no "=value" enables
// it, matching the real invocation syntax (--upb_out=fasttable:$dir); any
// other bare key, or any key outside {fasttable, profile, debug_json}, is a
// parameter error.
func NewPluginSettingsFromPlugin(p *protogen.Plugin) (*PluginSettings, error) {
	raw := p.Request.GetParameter()
	logger.Debug("parsing plugin parameter", zap.String("raw", raw))
	if raw == "" {
		return &PluginSettings{}, nil
	}

	settings := &PluginSettings{}
	for _, param := range strings.Split(raw, ",") {
		if param == "" {
			continue
		}
		key, value, ok := strings.Cut(param, "=")
		if !ok {
			if key == keyFastTable {
				settings.FastTable = true
				continue
			}
			return nil, errors.Errorf("generator: malformed parameter %q (expected key=value)", param)
		}
		switch key {
		case keyFastTable:
			settings.FastTable = value == trueVal
		case keyProfile:
			settings.ProfilePath = value
		case keyDebugJSON:
			settings.DebugJSONDir = value
		default:
			return nil, errors.Errorf("generator: unknown plugin parameter %q", key)
		}
	}
	return settings, nil
}
