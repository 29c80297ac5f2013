package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"yarasynth/internal/core/config"
	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/core/ports"
	"yarasynth/internal/engine/bang"
	"yarasynth/internal/engine/extract"
	"yarasynth/internal/engine/rules"
	"yarasynth/internal/shared/observability"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ ports.PackageProcessor = (*Processor)(nil)

// Processor turns one package result directory into rule files.
type Processor struct {
	cfg        *config.Config
	ledger     ports.DedupLedger
	generator  *rules.Generator
	aggregator *rules.Aggregator
	options    extract.Options
	ignored    []glob.Glob
}

func NewProcessor(cfg *config.Config, ledger ports.DedupLedger) (*Processor, error) {
	if cfg == nil || ledger == nil {
		return nil, fmt.Errorf("processor requires config and ledger")
	}
	ignored, err := compileGlobs(cfg.Yara.IgnoredFiles, "ignored file")
	if err != nil {
		return nil, err
	}
	return &Processor{
		cfg:       cfg,
		ledger:    ledger,
		generator: rules.NewGenerator(cfg.Yara.RuleExtension),
		aggregator: &rules.Aggregator{
			Extension:    cfg.Yara.RuleExtension,
			BinarySubdir: cfg.Yara.BinarySubdir,
			WriteCorpora: cfg.Yara.GenerateIdentifierFiles,
		},
		options: extract.OptionsFromConfig(cfg),
		ignored: ignored,
	}, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (p *Processor) isIgnored(name string) bool {
	for _, g := range p.ignored {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Process runs the package algorithm for job. Errors are job-fatal; skipped artifacts and
// duplicate packages are reported through the result. When the returned result carries a
// RootHash, the hash was admitted by the ledger during this call.
func (p *Processor) Process(ctx context.Context, job ports.PackageJob) (ports.PackageResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "processor.Process",
		trace.WithAttributes(attribute.String("dir", job.Dir), attribute.Int("attempt", job.Attempt)))
	defer span.End()

	started := time.Now()
	res, err := p.process(ctx, job)
	res.Dir = job.Dir
	res.Duration = time.Since(started)
	observability.PackageDuration.Observe(res.Duration.Seconds())

	if err != nil {
		res.Outcome = ports.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("package", res.Package), attribute.String("outcome", string(res.Outcome)))
	return res, err
}

func (p *Processor) process(ctx context.Context, job ports.PackageJob) (ports.PackageResult, error) {
	var res ports.PackageResult

	manifestPath := filepath.Join(job.Dir, p.cfg.Runtime.ManifestName)
	manifest, err := bang.ReadManifest(manifestPath)
	if err != nil {
		return res, err
	}
	root, err := manifest.Root()
	if err != nil {
		return res, domainerrors.AddContext(err, domainerrors.CtxPath, manifestPath)
	}
	res.Package = root.Name()

	admitted, err := p.ledger.Admit(ctx, root.Hash.SHA256)
	if err != nil {
		return res, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "dedup ledger admission failed"),
			domainerrors.CtxPackage, res.Package)
	}
	if !admitted {
		res.Outcome = ports.OutcomeDuplicate
		slog.Debug("skipping duplicate package", "package", res.Package, "dir", job.Dir, "sha256", root.Hash.SHA256)
		return res, nil
	}
	res.RootHash = root.Hash.SHA256

	resultsDir := filepath.Join(job.Dir, p.cfg.Runtime.ResultsDir)
	binaryDir := p.cfg.BinaryDirectory()
	names := rules.NewFileNames(res.Package, p.cfg.Yara.RuleExtension)
	corpus := rules.NewCorpus()

	for _, entry := range manifest.Entries() {
		if err := checkContext(ctx, res.Package); err != nil {
			return res, err
		}

		kind, ok := extract.KindOf(entry)
		if !ok {
			continue
		}
		name := entry.Name()
		if p.isIgnored(name) {
			observability.ArtifactsTotal.WithLabelValues(string(kind), "ignored").Inc()
			continue
		}

		rec, err := bang.ReadRecord(resultsDir, entry.Hash.SHA256)
		if err != nil {
			res.ArtifactsSkipped++
			observability.ArtifactsTotal.WithLabelValues(string(kind), "unreadable").Inc()
			slog.Debug("skipping artifact without readable record", "package", res.Package, "artifact", name, "error", err)
			continue
		}
		if rec.Metadata == nil {
			res.ArtifactsSkipped++
			observability.ArtifactsTotal.WithLabelValues(string(kind), "no_metadata").Inc()
			slog.Debug("skipping artifact without metadata", "package", res.Package, "artifact", name)
			continue
		}

		extracted := extract.Extract(kind, rec, p.options)
		if extracted.Truncated > 0 {
			observability.IdentifiersTruncatedTotal.Add(float64(extracted.Truncated))
			slog.Warn("identifier limit reached, rule truncated",
				"package", res.Package, "artifact", name,
				"dropped", extracted.Truncated, "max_identifiers", p.options.MaxIdentifiers)
		}
		ids := extracted.Identifiers
		if ids.Empty() {
			observability.ArtifactsTotal.WithLabelValues(string(kind), "empty").Inc()
			continue
		}

		metadata := map[string]string{
			rules.MetaName:    name,
			rules.MetaPackage: res.Package,
			rules.MetaSHA256:  entry.Hash.SHA256,
		}
		if rec.TLSH != "" {
			metadata[rules.MetaTLSH] = rec.TLSH
		}
		if extracted.Telfhash != "" {
			metadata[rules.MetaTelfhash] = extracted.Telfhash
		}

		tags := make([]string, 0, len(p.cfg.Yara.Tags)+1)
		tags = append(tags, p.cfg.Yara.Tags...)
		tags = append(tags, string(kind))

		fileName := names.Assign(name, entry.Hash.SHA256)
		if _, err := p.generator.EmitFile(binaryDir, fileName, metadata, ids.Functions, ids.Variables, ids.Strings, tags); err != nil {
			return res, domainerrors.AddContext(err, domainerrors.CtxArtifact, name)
		}
		res.RuleFiles = append(res.RuleFiles, fileName)
		corpus.Add(ids.Functions, ids.Variables)

		observability.ArtifactsTotal.WithLabelValues(string(kind), "rule").Inc()
		observability.RuleIdentifiers.WithLabelValues(string(kind)).Observe(float64(ids.Total()))
		observability.RulesWrittenTotal.Inc()
		slog.Debug("rule written", "package", res.Package, "artifact", name, "file", fileName, "identifiers", ids.Total())
	}

	wrote, err := p.aggregator.Write(p.cfg.Yara.Directory, res.Package, res.RuleFiles, corpus)
	if err != nil {
		return res, domainerrors.AddContext(err, domainerrors.CtxPackage, res.Package)
	}
	if wrote {
		res.Outcome = ports.OutcomeWritten
	} else {
		res.Outcome = ports.OutcomeEmpty
	}
	return res, nil
}

func checkContext(ctx context.Context, pkg string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	code := domainerrors.CodeInternal
	msg := "package job cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		code = domainerrors.CodeTimeout
		msg = "package job timed out"
	}
	return domainerrors.AddContext(domainerrors.Wrap(err, code, msg), domainerrors.CtxPackage, pkg)
}
