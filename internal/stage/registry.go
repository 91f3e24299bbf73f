package stage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ZhaohnNwafu/Autom6A/internal/config"
)

// Stage names, in pipeline order.
const (
	ConvertFormat     = "convert-format"
	Basecall          = "basecall"
	Align             = "align"
	RealignSignal     = "realign-signal"
	InferModification = "infer-modification"
)

// Registry holds the ordered, fully-resolved stage descriptors for one run.
// It is built once from the run configuration; command placeholders are
// rendered at build time because every artifact path is derived from the
// single output root up front.
type Registry struct {
	stages []Descriptor
}

// OrderedStages returns the stages in dependency order.
func (r *Registry) OrderedStages() []Descriptor {
	return r.stages
}

// Stage returns the descriptor with the given name.
func (r *Registry) Stage(name string) (Descriptor, bool) {
	for _, d := range r.stages {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

type artifactTemplate struct {
	name    string
	rel     string // path relative to the output root
	kind    Kind
	minSize int64
}

type cmdTemplate struct {
	tool   string // key into the configured tool table
	args   []string
	stdout string // "{artifact}" to redirect stdout, or ""
}

type stageTemplate struct {
	name    string
	context string
	cmds    []cmdTemplate
	inputs  []string
	outputs []artifactTemplate
}

// stageTemplates is the fixed five-stage m6A workflow:
// pod5 conversion → dorado basecalling (+ fastq extraction) →
// minimap2 alignment (+ sort/index) → nanopolish eventalign →
// m6anet dataprep + inference.
var stageTemplates = []stageTemplate{
	{
		name:    ConvertFormat,
		context: "nanopore",
		cmds: []cmdTemplate{
			{tool: "pod5", args: []string{"convert", "fast5", "{signal_dir}", "--output", "{reads_pod5}", "--threads", "{threads}"}},
		},
		outputs: []artifactTemplate{
			{name: "reads_pod5", rel: "reads.pod5", kind: KindFile},
		},
	},
	{
		name:    Basecall,
		context: "nanopore",
		cmds: []cmdTemplate{
			{tool: "dorado", args: []string{"basecaller", "{model}", "{reads_pod5}", "--modified-bases", "m6A"}, stdout: "{calls_bam}"},
			{tool: "samtools", args: []string{"fastq", "-T", "*", "{calls_bam}"}, stdout: "{reads_fastq}"},
		},
		inputs: []string{"reads_pod5"},
		outputs: []artifactTemplate{
			{name: "calls_bam", rel: "calls.bam", kind: KindFile},
			{name: "reads_fastq", rel: "reads.fastq", kind: KindFile},
		},
	},
	{
		name:    Align,
		context: "nanopore",
		cmds: []cmdTemplate{
			{tool: "minimap2", args: []string{"-ax", "map-ont", "-t", "{threads}", "{reference}", "{reads_fastq}"}, stdout: "{aligned_sam}"},
			{tool: "samtools", args: []string{"sort", "-@", "{threads}", "-o", "{aligned_bam}", "{aligned_sam}"}},
			{tool: "samtools", args: []string{"index", "{aligned_bam}"}},
		},
		inputs: []string{"reads_fastq"},
		outputs: []artifactTemplate{
			{name: "aligned_sam", rel: "aligned.sam", kind: KindFile},
			{name: "aligned_bam", rel: "aligned.bam", kind: KindFile},
			{name: "aligned_bai", rel: "aligned.bam.bai", kind: KindFile},
		},
	},
	{
		name:    RealignSignal,
		context: "nanopore",
		cmds: []cmdTemplate{
			{tool: "nanopolish", args: []string{"index", "-d", "{signal_dir}", "{reads_fastq}"}},
			{tool: "nanopolish", args: []string{
				"eventalign",
				"--reads", "{reads_fastq}",
				"--bam", "{aligned_bam}",
				"--genome", "{reference}",
				"--scale-events", "--signal-index",
				"--summary", "{summary_txt}",
				"--threads", "{threads}",
			}, stdout: "{eventalign_txt}"},
		},
		inputs: []string{"reads_fastq", "aligned_bam", "aligned_bai"},
		outputs: []artifactTemplate{
			{name: "eventalign_txt", rel: "eventalign.txt", kind: KindFile},
			{name: "summary_txt", rel: "eventalign.summary.txt", kind: KindFile},
		},
	},
	{
		name:    InferModification,
		context: "m6anet",
		cmds: []cmdTemplate{
			{tool: "m6anet", args: []string{"dataprep", "--eventalign", "{eventalign_txt}", "--out_dir", "{dataprep_dir}", "--n_processes", "{threads}"}},
			{tool: "m6anet", args: []string{"inference", "--input_dir", "{dataprep_dir}", "--out_dir", "{results_dir}", "--n_processes", "{threads}"}},
		},
		inputs: []string{"eventalign_txt"},
		outputs: []artifactTemplate{
			{name: "dataprep_dir", rel: "dataprep", kind: KindDir},
			{name: "results_dir", rel: "results", kind: KindDir},
			{name: "site_proba", rel: filepath.Join("results", "data.site_proba.csv"), kind: KindFile},
		},
	},
}

var placeholderRe = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

// New builds the registry from the run configuration. Artifact paths are
// resolved under cfg.OutputRoot and every command template is checked to
// reference only run parameters and artifacts declared by itself or an
// earlier stage; a forward reference is a configuration defect and fails the
// build.
func New(cfg *config.Config) (*Registry, error) {
	return build(cfg, stageTemplates)
}

func build(cfg *config.Config, templates []stageTemplate) (*Registry, error) {
	params := map[string]string{
		"signal_dir": cfg.SignalDir,
		"reference":  cfg.Reference,
		"threads":    strconv.Itoa(cfg.Threads),
		"model":      cfg.BasecallModel,
	}
	tools := map[string]string{
		"pod5":       cfg.Tools.Pod5,
		"dorado":     cfg.Tools.Dorado,
		"samtools":   cfg.Tools.Samtools,
		"minimap2":   cfg.Tools.Minimap2,
		"nanopolish": cfg.Tools.Nanopolish,
		"m6anet":     cfg.Tools.M6anet,
	}

	declared := map[string]ArtifactRef{} // artifacts from earlier stages
	reg := &Registry{}

	for ordinal, st := range templates {
		own := map[string]ArtifactRef{}
		outputs := make([]ArtifactRef, 0, len(st.outputs))
		for _, at := range st.outputs {
			if _, dup := declared[at.name]; dup {
				return nil, fmt.Errorf("stage %q redeclares artifact %q", st.name, at.name)
			}
			if _, dup := own[at.name]; dup {
				return nil, fmt.Errorf("stage %q redeclares artifact %q", st.name, at.name)
			}
			ref := ArtifactRef{
				Name:    at.name,
				Path:    filepath.Join(cfg.OutputRoot, at.rel),
				Kind:    at.kind,
				MinSize: at.minSize,
			}
			own[at.name] = ref
			outputs = append(outputs, ref)
		}

		inputs := make([]ArtifactRef, 0, len(st.inputs))
		for _, name := range st.inputs {
			ref, ok := declared[name]
			if !ok {
				return nil, fmt.Errorf("stage %q declares input %q not produced by an earlier stage", st.name, name)
			}
			inputs = append(inputs, ref)
		}

		vars := make(map[string]string, len(params)+len(declared)+len(own))
		for k, v := range params {
			vars[k] = v
		}
		for k, ref := range declared {
			vars[k] = ref.Path
		}
		for k, ref := range own {
			vars[k] = ref.Path
		}

		commands := make([]Command, 0, len(st.cmds))
		for _, ct := range st.cmds {
			exe, ok := tools[ct.tool]
			if !ok || exe == "" {
				return nil, fmt.Errorf("stage %q uses unconfigured tool %q", st.name, ct.tool)
			}
			args := make([]string, 0, len(ct.args))
			for _, a := range ct.args {
				rendered, err := render(a, vars)
				if err != nil {
					return nil, fmt.Errorf("stage %q: %w", st.name, err)
				}
				args = append(args, rendered)
			}
			stdout := ""
			if ct.stdout != "" {
				rendered, err := render(ct.stdout, vars)
				if err != nil {
					return nil, fmt.Errorf("stage %q: %w", st.name, err)
				}
				stdout = rendered
			}
			commands = append(commands, Command{Exe: exe, Args: args, Stdout: stdout})
		}

		desc := Descriptor{
			Name:     st.name,
			Ordinal:  ordinal,
			Context:  st.context,
			Commands: commands,
			Inputs:   inputs,
			Outputs:  outputs,
		}
		desc.Checks = structuralChecks(st.name, vars)
		reg.stages = append(reg.stages, desc)

		for k, ref := range own {
			declared[k] = ref
		}
	}

	return reg, nil
}

// render substitutes {name} placeholders; a name missing from vars means the
// template references an artifact not yet declared (forward reference) or an
// unknown parameter.
func render(s string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("template %q references undeclared artifact or parameter %q", s, missing)
	}
	return out, nil
}

// structuralChecks returns the per-stage output sanity predicates. These are
// structural, not scientific: they catch tools that exit zero after writing
// truncated or stale output, not biologically implausible results.
func structuralChecks(name string, vars map[string]string) []Check {
	switch name {
	case Basecall:
		return []Check{
			{Artifact: "reads_fastq", Fn: FastqHasRecord(vars["reads_fastq"])},
		}
	case Align:
		return []Check{
			{Artifact: "aligned_bai", Fn: IndexNotOlderThan(vars["aligned_bai"], vars["aligned_bam"])},
		}
	case RealignSignal:
		return []Check{
			{Artifact: "eventalign_txt", Fn: TableHasRows(vars["eventalign_txt"], 1)},
		}
	case InferModification:
		return []Check{
			{Artifact: "site_proba", Fn: CSVHasColumn(vars["site_proba"], "probability_modified")},
		}
	}
	return nil
}
