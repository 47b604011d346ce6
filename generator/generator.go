// Package generator orchestrates the full run: collect files from the plugin
// request, compute each file's layout, and emit its header and source, per
// Generator.
package generator

import (
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/upb-gen/protoc-gen-upb/debugdump"
	"github.com/upb-gen/protoc-gen-upb/emit"
	"github.com/upb-gen/protoc-gen-upb/fasttable"
	"github.com/upb-gen/protoc-gen-upb/layout"
	"github.com/upb-gen/protoc-gen-upb/logger"
	"github.com/upb-gen/protoc-gen-upb/names"
	"github.com/upb-gen/protoc-gen-upb/profile"
)

// Generator holds one run's settings and the plugin handle.
type Generator struct {
	Settings *PluginSettings
	Plugin   *protogen.Plugin

	profile *profile.Profile
}

// NewGenerator constructs a Generator, loading the optional hotness
// profile named by settings.ProfilePath up front so a bad path fails
// fast instead of mid-file.
func NewGenerator(p *protogen.Plugin, settings *PluginSettings) (*Generator, error) {
	g := &Generator{Settings: settings, Plugin: p}
	if settings.ProfilePath != "" {
		prof, err := profile.Load(settings.ProfilePath)
		if err != nil {
			return nil, errors.Wrap(err, "generator: loading hotness profile")
		}
		g.profile = prof
	}
	return g, nil
}

// Collect returns the files this run should emit for: skip files the
// plugin framework marked as not-to-generate (a file reached only as
// an import of a generated file).
func (g *Generator) Collect() []*protogen.File {
	var out []*protogen.File
	for _, f := range g.Plugin.Files {
		if !f.Generate {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Generate runs the full pipeline for every collected file: build its
// FileLayout, optionally build per-message fast tables, then emit the header
// and source artifacts.
func (g *Generator) Generate() error {
	var combinedErr error

	for _, file := range g.Collect() {
		l := logger.Logger.Named("Generate").With(zap.String("file", file.Desc.Path()))
		l.Info("processing file")

		fl, err := layout.BuildFileLayout(file)
		if err != nil {
			combinedErr = errors.Wrap(err, "generator: "+file.Desc.Path())
			continue
		}

		r := names.NewResolver()

		tables := g.buildFastTables(fl, l)

		headerPath := strings.TrimSuffix(file.Desc.Path(), ".proto") + ".upb.h"
		sourcePath := strings.TrimSuffix(file.Desc.Path(), ".proto") + ".upb.c"

		hg := g.Plugin.NewGeneratedFile(headerPath, "")
		emit.Header(hg, file, fl, r)

		sg := g.Plugin.NewGeneratedFile(sourcePath, "")
		var fastTableOf emit.FastTableOf
		if g.Settings.FastTable {
			fastTableOf = func(pair *layout.MessagePair) *fasttable.Table {
				return tables[pair.Message.Desc.FullName()]
			}
		}
		emit.Source(sg, file, fl, r, file.Desc.Path(), fastTableOf)

		if g.Settings.DebugJSONDir != "" {
			if err := debugdump.Write(g.Settings.DebugJSONDir, file, fl, tables); err != nil {
				l.Warn("debug dump failed", zap.Error(err))
			}
		}
	}

	return combinedErr
}

// buildFastTables builds one fasttable.Table per message when fast-table
// emission is enabled, keyed by message full name so the emit.FastTableOf
// callback can look them back up per MessagePair; logs coverage so a run
// with widespread fast-path degradation is visible.
func (g *Generator) buildFastTables(fl *layout.FileLayout, l *zap.Logger) map[protoreflect.FullName]*fasttable.Table {
	tables := make(map[protoreflect.FullName]*fasttable.Table)
	if !g.Settings.FastTable {
		return tables
	}
	for _, pair := range fl.Messages {
		hotness := fasttable.DefaultHotness
		if g.profile != nil {
			hotness = g.profile.Hotness(string(pair.Message.Desc.FullName()))
		}
		t := fasttable.Build(pair.L64, fl, hotness)
		tables[pair.Message.Desc.FullName()] = t
		if len(t.Skipped) > 0 {
			placed := 0
			for _, e := range t.Entries {
				if e.Symbol != fasttable.GenericSymbol {
					placed++
				}
			}
			l.Debug("fast-table degraded coverage",
				zap.String("message", string(pair.Message.Desc.FullName())),
				zap.Int("skipped", len(t.Skipped)),
				zap.Int("placed", placed),
			)
		}
	}
	return tables
}
