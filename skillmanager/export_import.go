package skillmanager

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentflow/skillcore/skillstore"
	"github.com/agentflow/skillcore/smcerr"
)

const frontMatterDelimiter = "---"

// frontMatter is the YAML-style block exported ahead of a skill's content.
// Unknown keys round-trip via Extra.
type frontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	SkillType   string   `yaml:"skill_type"`
	Tags        []string `yaml:"tags"`
	Extra       map[string]any `yaml:"-"`
}

func (fm frontMatter) marshal() ([]byte, error) {
	m := map[string]any{
		"name":        fm.Name,
		"description": fm.Description,
		"skill_type":  fm.SkillType,
		"tags":        fm.Tags,
	}
	for k, v := range fm.Extra {
		if _, known := m[k]; !known {
			m[k] = v
		}
	}
	return yaml.Marshal(m)
}

func parseFrontMatter(raw map[string]any) frontMatter {
	fm := frontMatter{Extra: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "name":
			fm.Name, _ = v.(string)
		case "description":
			fm.Description, _ = v.(string)
		case "skill_type":
			fm.SkillType, _ = v.(string)
		case "tags":
			fm.Tags = toStringSlice(v)
		default:
			fm.Extra[k] = v
		}
	}
	return fm
}

func toStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ExportSkill writes a skill's current content to path, prefixed with a
// YAML-style front matter block naming its name/description/skill_type/tags.
func (m *Manager) ExportSkill(ctx context.Context, name, path string) error {
	rec, err := m.repo.GetSkill(ctx, name)
	if err != nil {
		return err
	}

	fm := frontMatter{Name: rec.Name, Description: rec.Description, SkillType: string(rec.SkillType), Tags: rec.Tags}
	body, err := fm.marshal()
	if err != nil {
		return smcerr.New(smcerr.CodeIOFailure, "marshal export front matter").WithCause(err)
	}

	var out strings.Builder
	out.WriteString(frontMatterDelimiter + "\n")
	out.Write(body)
	out.WriteString(frontMatterDelimiter + "\n\n")
	out.WriteString(rec.Content)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return smcerr.New(smcerr.CodeIOFailure, "create export directory").WithCause(err)
	}
	if err := os.WriteFile(path, []byte(out.String()), 0o644); err != nil {
		return smcerr.New(smcerr.CodeIOFailure, "write export file").WithCause(err)
	}
	return nil
}

// ImportSkillFromFile parses a front-matter block (falling back to
// {name: filename stem, skill_type: basic, description: ""} when absent)
// and calls AddSkill. A pre-existing name fails with DuplicateName rather
// than silently overwriting, even when the name was derived from the
// filename stem.
func (m *Manager) ImportSkillFromFile(ctx context.Context, path string) (uint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, smcerr.New(smcerr.CodeIOFailure, "read import file").WithCause(err)
	}

	fm, body, err := splitFrontMatter(string(data))
	if err != nil {
		return 0, smcerr.New(smcerr.CodeIOFailure, "parse import front matter").WithCause(err)
	}
	if fm.Name == "" {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		fm = frontMatter{Name: stem, SkillType: string(skillstore.SkillTypeBasic), Description: ""}
	}
	if fm.SkillType == "" {
		fm.SkillType = string(skillstore.SkillTypeBasic)
	}

	return m.AddSkill(ctx, skillstore.AddSkillParams{
		Name:        fm.Name,
		Content:     body,
		SkillType:   skillstore.SkillType(fm.SkillType),
		Description: fm.Description,
		Tags:        fm.Tags,
	})
}

// splitFrontMatter separates a leading "---"-delimited YAML block from the
// remaining body. If no front matter block is present, it returns a zero
// frontMatter and the entire input as body.
func splitFrontMatter(content string) (frontMatter, string, error) {
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, frontMatterDelimiter) {
		return frontMatter{}, content, nil
	}

	rest := trimmed[len(frontMatterDelimiter):]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end == -1 {
		return frontMatter{}, content, nil
	}

	yamlBlock := strings.TrimPrefix(rest[:end], "\n")
	body := strings.TrimPrefix(rest[end+len(frontMatterDelimiter)+1:], "\n")
	body = strings.TrimPrefix(body, "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &raw); err != nil {
		return frontMatter{}, "", err
	}
	return parseFrontMatter(raw), body, nil
}
