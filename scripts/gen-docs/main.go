package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"awssched/cmd"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

const docsDir = "./docs"

func main() {
	// 既存のdocsディレクトリを作り直す
	if err := os.RemoveAll(docsDir); err != nil {
		log.Fatalf("Failed to clean docs directory: %v", err)
	}
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		log.Fatalf("Failed to create docs directory: %v", err)
	}

	// ルートコマンドはdocs/README.mdとして生成
	if err := writeCommandDoc(cmd.RootCmd, filepath.Join(docsDir, "README.md")); err != nil {
		log.Fatalf("Failed to generate root documentation: %v", err)
	}

	// トップレベルのコマンドごとに、サブコマンドを含めて1ファイルにまとめる
	count := 1
	for _, group := range cmd.RootCmd.Commands() {
		if !isDocumented(group) {
			continue
		}
		commands := []*cobra.Command{group}
		for _, child := range group.Commands() {
			if isDocumented(child) {
				commands = append(commands, child)
			}
		}

		filename := filepath.Join(docsDir, group.Name()+".md")
		if err := writeGroupDoc(group.Name(), commands, filename); err != nil {
			log.Printf("Failed to generate documentation for %s: %v", group.Name(), err)
			continue
		}
		count++
	}

	fmt.Printf("✅ Documentation generated in %s (%d files)\n", docsDir, count)
}

func isDocumented(c *cobra.Command) bool {
	return c.IsAvailableCommand() && !c.IsAdditionalHelpTopicCommand()
}

// linkHandler は awssched_schedule_apply を schedule#awssched-schedule-apply の形に変換する
func linkHandler(name string) string {
	base := strings.TrimSuffix(name, ".md")
	if base == cmd.AppName {
		return "README.md"
	}

	parts := strings.Split(base, "_")
	if len(parts) < 2 || parts[0] != cmd.AppName {
		return name
	}
	if len(parts) == 2 {
		return parts[1] + ".md"
	}
	return parts[1] + ".md#" + strings.ReplaceAll(base, "_", "-")
}

func render(c *cobra.Command) (string, error) {
	buf := new(bytes.Buffer)
	if err := doc.GenMarkdownCustom(c, buf, linkHandler); err != nil {
		return "", err
	}
	content := buf.String()
	if c.Name() == "version" {
		content = stripInheritedFlags(content)
	}
	return content, nil
}

func writeCommandDoc(c *cobra.Command, filename string) error {
	content, err := render(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0o644)
}

func writeGroupDoc(name string, commands []*cobra.Command, filename string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Commands\n\n", name)
	b.WriteString("## Table of Contents\n\n")
	for _, c := range commands {
		path := c.CommandPath()
		fmt.Fprintf(&b, "- [%s](#%s)\n", path, strings.ReplaceAll(path, " ", "-"))
	}
	b.WriteString("\n---\n\n")

	for _, c := range commands {
		content, err := render(c)
		if err != nil {
			return fmt.Errorf("failed to generate markdown for %s: %w", c.CommandPath(), err)
		}
		b.WriteString(content)
		b.WriteString("\n---\n\n")
	}

	return os.WriteFile(filename, []byte(b.String()), 0o644)
}

var inheritedHeading = regexp.MustCompile(`(?m)^### Options inherited from parent commands\n(?s:.*?)(^##|\z)`)

// stripInheritedFlags は継承フラグのセクションを取り除く
func stripInheritedFlags(content string) string {
	return inheritedHeading.ReplaceAllString(content, "$1")
}
