// smcdemo is a small command-line front end over the skills management
// core, useful for exercising a storage_dir by hand.
//
// Usage:
//
//	smcdemo add --dir <path> --name <name> --type basic --content <text>
//	smcdemo search --dir <path> --query <text> --k 5
//	smcdemo compose --dir <path> --task <text>
//	smcdemo stats --dir <path>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentflow/skillcore/config"
	"github.com/agentflow/skillcore/skillmanager"
	"github.com/agentflow/skillcore/skillstore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		runAdd(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "compose":
		runCompose(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`smcdemo - skills management core CLI

Usage:
  smcdemo <command> [options]

Commands:
  add       Add a skill to the store
  search    Search skills by free text
  compose   Compose a skill plan for a task
  stats     Print system-wide execution stats
  help      Show this help message`)
}

func openManager(dir string) (*skillmanager.Manager, error) {
	cfg := config.Default()
	cfg.StorageDir = dir
	return skillmanager.New(cfg, initLogger())
}

func initLogger() *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	dir := fs.String("dir", "", "storage directory")
	name := fs.String("name", "", "skill name")
	skillType := fs.String("type", "basic", "skill_type: basic, composite or meta")
	content := fs.String("content", "", "skill content")
	description := fs.String("description", "", "skill description")
	fs.Parse(args)

	m, err := openManager(*dir)
	if err != nil {
		fatalf("open manager: %v", err)
	}
	defer m.Close()

	id, err := m.AddSkill(context.Background(), skillstore.AddSkillParams{
		Name:        *name,
		Content:     *content,
		SkillType:   skillstore.SkillType(*skillType),
		Description: *description,
	})
	if err != nil {
		fatalf("add_skill: %v", err)
	}
	fmt.Printf("added skill %q (id=%d)\n", *name, id)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	dir := fs.String("dir", "", "storage directory")
	query := fs.String("query", "", "search text")
	k := fs.Int("k", 5, "number of results")
	fs.Parse(args)

	m, err := openManager(*dir)
	if err != nil {
		fatalf("open manager: %v", err)
	}
	defer m.Close()

	results, err := m.SearchSkills(context.Background(), *query, *k, "")
	if err != nil {
		fatalf("search_skills: %v", err)
	}
	for _, r := range results {
		fmt.Printf("%-30s score=%.3f\n", r.Skill.Name, r.Score)
	}
}

func runCompose(args []string) {
	fs := flag.NewFlagSet("compose", flag.ExitOnError)
	dir := fs.String("dir", "", "storage directory")
	task := fs.String("task", "", "task description")
	maxSkills := fs.Int("max", 8, "maximum plan size")
	fs.Parse(args)

	m, err := openManager(*dir)
	if err != nil {
		fatalf("open manager: %v", err)
	}
	defer m.Close()

	entries, warnings, err := m.ComposeForTask(context.Background(), *task, *maxSkills)
	if err != nil {
		fatalf("compose_for_task: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("%d. %s (relevance=%.3f)\n", e.StepIndex, e.Skill.Name, e.RelevanceScore)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dir := fs.String("dir", "", "storage directory")
	fs.Parse(args)

	m, err := openManager(*dir)
	if err != nil {
		fatalf("open manager: %v", err)
	}
	defer m.Close()

	stats, err := m.GetSystemStats(context.Background())
	if err != nil {
		fatalf("get_system_stats: %v", err)
	}
	fmt.Printf("total_usage=%d total_success=%d success_rate=%.3f\n", stats.TotalUsage, stats.TotalSuccess, stats.SuccessRate)
	for t, c := range stats.CountByType {
		fmt.Printf("  %s: %d\n", t, c)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
