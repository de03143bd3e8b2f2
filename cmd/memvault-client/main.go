package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/engine"
	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/memvault"
)

// Constants for the command-line interface
const (
	cmdHelp     = "!help"
	cmdQuit     = "!quit"
	cmdNS       = "!ns"
	cmdStore    = "!store"
	cmdSearch   = "!search"
	cmdList     = "!list"
	cmdGet      = "!get"
	cmdRm       = "!rm"
	cmdRandom   = "!random"
	cmdLabel    = "!label"
	cmdUnlabel  = "!unlabel"
	cmdStats    = "!stats"
	cmdTrending = "!trending"
	cmdConfig   = "!config"
)

// Command-line help text
const helpText = `
MemVault Client - Command Reference:
-----------------------------------------
!help                      - Show this help message
!ns <namespace>            - Set the current namespace ("" sees all)
!store <text>              - Store a memory (labels via "text :: label1, label2")
!search <query>            - Retrieve memories by semantic similarity
!list [filter]             - List recent memories, optionally label-filtered
!get <id>                  - Show a single memory
!rm <id>                   - Delete a memory
!random [filter]           - Pick a random matching memory
!label <id> <labels>       - Add comma-separated labels to a memory
!unlabel <id> <labels>     - Remove labels from a memory
!stats [filter]            - Count memories and show matched label spellings
!trending [days]           - Show labels trending in the recent window
!config                    - Show current configuration
!quit                      - Exit the application

Notes:
- Regular text input is treated as a semantic search
- Filters are comma-separated fuzzy patterns; prefix with ! to exclude
- Tab completion is available for commands
- Use up/down arrows for command history`

// historyFile is the file where command history is stored
const historyFile = ".memvault_history"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	stdinMode := flag.Bool("s", false, "Read from stdin and exit when complete")
	flag.Parse()

	log.Setup(log.Config{
		Level:  log.WarnLevel,
		Format: log.TextFormat,
	})

	vault, err := memvault.NewFromConfig(context.Background(), *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize memvault: %v\n", err)
		os.Exit(1)
	}
	defer vault.Close()

	runCLI(vault, *stdinMode)
}

// runCLI starts the command-line interface for user interaction
func runCLI(vault *memvault.Vault, stdinMode bool) {
	currentNS := vault.Config.Namespace

	if stdinMode {
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("\n=== MemVault Client (stdin mode) ===")
		printBanner(vault.Config, currentNS)

		for scanner.Scan() {
			input := strings.TrimSpace(scanner.Text())
			if input == "" || strings.HasPrefix(input, "#") {
				continue
			}
			if input == cmdQuit {
				break
			}
			fmt.Printf("memvault:%s> %s\n", displayNS(currentNS), input)
			processCommand(input, vault, &currentNS)
		}
		if err := scanner.Err(); err != nil {
			fmt.Printf("Error reading stdin: %v\n", err)
		}
		fmt.Println("Goodbye!")
		return
	}

	// Interactive mode
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)

	line.SetCompleter(func(line string) (c []string) {
		commands := []string{
			cmdHelp, cmdQuit, cmdNS, cmdStore, cmdSearch, cmdList, cmdGet,
			cmdRm, cmdRandom, cmdLabel, cmdUnlabel, cmdStats, cmdTrending, cmdConfig,
		}
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("\n=== MemVault Client ===")
	printBanner(vault.Config, currentNS)
	fmt.Println("Type !help for available commands.")

	for {
		input, err := line.Prompt(fmt.Sprintf("memvault:%s> ", displayNS(currentNS)))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == cmdQuit {
			fmt.Println("Goodbye!")
			break
		}
		processCommand(input, vault, &currentNS)
	}
}

func printBanner(cfg *config.Config, ns string) {
	fmt.Println("Store:", cfg.Store.Type)
	fmt.Println("Embedding:", cfg.Embedding.Provider)
	fmt.Printf("Namespace: %s\n", displayNS(ns))
}

func displayNS(ns string) string {
	if ns == "" {
		return "*"
	}
	return ns
}

// processCommand handles a single command line
func processCommand(input string, vault *memvault.Vault, currentNS *string) {
	ctx := context.Background()

	if !strings.HasPrefix(input, "!") {
		doSearch(ctx, vault, *currentNS, input)
		return
	}

	parts := strings.SplitN(input, " ", 2)
	cmd := parts[0]
	rest := ""
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case cmdHelp:
		fmt.Println(helpText)

	case cmdNS:
		*currentNS = rest
		fmt.Printf("Namespace set to: %s\n", displayNS(*currentNS))

	case cmdStore:
		if rest == "" {
			fmt.Println("Usage: !store <text> [:: label1, label2]")
			return
		}
		content, labels := splitStoreInput(rest)
		result, err := vault.Engine.Store(ctx, engine.StoreParams{
			Content:   content,
			Labels:    labels,
			Source:    "memvault-client",
			Namespace: *currentNS,
		})
		if err != nil {
			fmt.Printf("Error storing memory: %v\n", err)
			return
		}
		fmt.Printf("Stored %s\n", result.Record.ID)
		if result.Similar != nil {
			fmt.Printf("Note: %s to existing memory %s (similarity %.2f)\n",
				result.Similar.Band, result.Similar.ID, result.Similar.Similarity)
		}

	case cmdSearch:
		if rest == "" {
			fmt.Println("Usage: !search <query>")
			return
		}
		doSearch(ctx, vault, *currentNS, rest)

	case cmdList:
		results, err := vault.Engine.Retrieve(ctx, engine.RetrieveParams{
			Labels:    rest,
			Namespace: *currentNS,
		})
		if err != nil {
			fmt.Printf("Error listing memories: %v\n", err)
			return
		}
		printResults(results, false)

	case cmdGet:
		if rest == "" {
			fmt.Println("Usage: !get <id>")
			return
		}
		record, err := vault.Engine.Get(ctx, rest)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				fmt.Println("No memory with that id.")
			} else {
				fmt.Printf("Error fetching memory: %v\n", err)
			}
			return
		}
		printRecord(record)

	case cmdRm:
		if rest == "" {
			fmt.Println("Usage: !rm <id>")
			return
		}
		existed, err := vault.Engine.Delete(ctx, rest)
		if err != nil {
			fmt.Printf("Error deleting memory: %v\n", err)
			return
		}
		if existed {
			fmt.Println("Deleted.")
		} else {
			fmt.Println("Nothing to delete.")
		}

	case cmdRandom:
		record, err := vault.Engine.RandomPick(ctx, engine.PickParams{
			Labels:    rest,
			Namespace: *currentNS,
		})
		if err != nil {
			fmt.Printf("Error picking memory: %v\n", err)
			return
		}
		if record == nil {
			fmt.Println("No memories match.")
			return
		}
		printRecord(*record)

	case cmdLabel, cmdUnlabel:
		idAndLabels := strings.SplitN(rest, " ", 2)
		if len(idAndLabels) != 2 {
			fmt.Printf("Usage: %s <id> <label1, label2>\n", cmd)
			return
		}
		id := idAndLabels[0]
		labels := engine.SplitLabelList(idAndLabels[1])

		var record memory.Record
		var err error
		if cmd == cmdLabel {
			record, err = vault.Engine.AddLabels(ctx, id, labels)
		} else {
			record, err = vault.Engine.RemoveLabels(ctx, id, labels)
		}
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				fmt.Println("No memory with that id.")
			} else {
				fmt.Printf("Error updating labels: %v\n", err)
			}
			return
		}
		fmt.Printf("Labels: %s\n", strings.Join(record.Labels, ", "))

	case cmdStats:
		stats, err := vault.Engine.Stats(ctx, engine.StatsParams{
			Labels:    rest,
			Namespace: *currentNS,
		})
		if err != nil {
			fmt.Printf("Error computing stats: %v\n", err)
			return
		}
		fmt.Printf("%d of %d memories (%.1f%%)\n", stats.Count, stats.NamespaceTotal, stats.Percentage)
		if len(stats.MatchedLabels) > 0 {
			fmt.Printf("Matched labels: %s\n", strings.Join(stats.MatchedLabels, ", "))
		}
		if len(stats.MatchedSources) > 0 {
			fmt.Printf("Matched sources: %s\n", strings.Join(stats.MatchedSources, ", "))
		}

	case cmdTrending:
		days := 0
		if rest != "" {
			d, err := strconv.Atoi(rest)
			if err != nil {
				fmt.Println("Usage: !trending [days]")
				return
			}
			days = d
		}
		rows, err := vault.Engine.Trending(ctx, engine.TrendingParams{
			Days:      days,
			Namespace: *currentNS,
		})
		if err != nil {
			fmt.Printf("Error computing trending labels: %v\n", err)
			return
		}
		if len(rows) == 0 {
			fmt.Println("No labels in the window.")
			return
		}
		for _, row := range rows {
			fmt.Printf("%-24s %.3f  (%s)\n", row.Label, row.Score, row.TopToken)
		}

	case cmdConfig:
		cfg := vault.Config
		fmt.Println("\nCurrent Configuration:")
		fmt.Println("======================")
		fmt.Printf("Store Type: %s\n", cfg.Store.Type)
		switch cfg.Store.Type {
		case "pgvector":
			fmt.Printf("Table: %s\n", cfg.Store.PgVector.TableName)
		case "sqlite":
			fmt.Printf("Path: %s\n", cfg.Store.SQLite.Path)
		case "boltdb":
			fmt.Printf("Path: %s\n", cfg.Store.BoltDB.Path)
		case "chromem":
			fmt.Printf("Collection: %s\n", cfg.Store.Chromem.Collection)
		}
		fmt.Printf("Embedding Provider: %s\n", cfg.Embedding.Provider)
		if cfg.Embedding.Provider == "openai" {
			fmt.Printf("Embedding Model: %s\n", cfg.Embedding.Model)
		}
		fmt.Printf("Encryption: %v\n", cfg.Encryption.Key != "")
		fmt.Printf("Namespace: %s\n", displayNS(*currentNS))
		fmt.Printf("Log Level: %s\n", cfg.Logging.Level)

	default:
		fmt.Printf("Unknown command: %s\nType !help for available commands.\n", cmd)
	}
}

// splitStoreInput separates "content :: label1, label2" into parts.
func splitStoreInput(input string) (string, []string) {
	parts := strings.SplitN(input, "::", 2)
	content := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return content, nil
	}
	return content, engine.SplitLabelList(parts[1])
}

func doSearch(ctx context.Context, vault *memvault.Vault, ns, query string) {
	results, err := vault.Engine.Retrieve(ctx, engine.RetrieveParams{
		Query:     query,
		Namespace: ns,
	})
	if err != nil {
		fmt.Printf("Error searching memories: %v\n", err)
		return
	}
	printResults(results, true)
}

func printResults(results []engine.Scored, scored bool) {
	if len(results) == 0 {
		fmt.Println("No memories found.")
		return
	}
	for i, r := range results {
		if scored {
			fmt.Printf("%2d. [%.3f] %s\n", i+1, r.Similarity, r.Record.Content)
		} else {
			fmt.Printf("%2d. %s\n", i+1, r.Record.Content)
		}
		fmt.Printf("    id=%s", r.Record.ID)
		if len(r.Record.Labels) > 0 {
			fmt.Printf(" labels=%s", strings.Join(r.Record.Labels, ","))
		}
		fmt.Println()
	}
}

func printRecord(record memory.Record) {
	fmt.Println(record.Content)
	fmt.Printf("  id:        %s\n", record.ID)
	if record.Namespace != "" {
		fmt.Printf("  namespace: %s\n", record.Namespace)
	}
	if len(record.Labels) > 0 {
		fmt.Printf("  labels:    %s\n", strings.Join(record.Labels, ", "))
	}
	if record.Source != "" {
		fmt.Printf("  source:    %s\n", record.Source)
	}
	fmt.Printf("  created:   %s\n", record.CreatedAt.Format(time.RFC3339))
}
