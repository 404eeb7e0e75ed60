package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lazypower/reverie/internal/engine"
	"github.com/lazypower/reverie/internal/memory"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

var (
	createCurrently string
	createSpan      int
	createTraits    string
)

var agentsCreateCmd = &cobra.Command{
	Use:   "create <agent>",
	Short: "Create an agent with empty memories",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsCreate,
}

var perceiveCmd = &cobra.Command{
	Use:   "perceive <agent> [facts.json]",
	Short: "Feed perceived facts to an agent",
	Long:  "Reads a JSON array of {subject, predicate, object, description} facts from the file, or stdin when omitted or \"-\".",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPerceive,
}

var (
	retrieveLong  bool
	retrieveLimit int
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <agent> <focal point>...",
	Short: "Retrieve the memories most relevant to the focal points",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRetrieve,
}

var forgetLong bool

var forgetCmd = &cobra.Command{
	Use:   "forget <agent> <id>",
	Short: "Remove a concept from an agent's memory",
	Args:  cobra.ExactArgs(2),
	RunE:  runForget,
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <agent>",
	Short: "Write an agent's memories as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <agent> <file.json>",
	Short: "Replace an agent's memories with an exported document",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

var tickCmd = &cobra.Command{
	Use:   "tick [steps]",
	Short: "Advance the simulation clock",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTick,
}

func init() {
	agentsCreateCmd.Flags().StringVar(&createCurrently, "currently", "", "current activity")
	agentsCreateCmd.Flags().IntVar(&createSpan, "attention-span", 0, "short-term results per retrieval (default from config)")
	agentsCreateCmd.Flags().StringVar(&createTraits, "traits", "", "learned traits")
	agentsCmd.AddCommand(agentsCreateCmd)

	retrieveCmd.Flags().BoolVar(&retrieveLong, "long", false, "search long-term memory")
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0, "maximum number of results (0 = all returned)")

	forgetCmd.Flags().BoolVar(&forgetLong, "long", false, "forget from long-term memory")

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to file instead of stdout")
}

func whichMemory(long bool) string {
	if long {
		return "long"
	}
	return "short"
}

func runAgents(cmd *cobra.Command, args []string) error {
	agents, err := apiClient().Agents(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(agents) == 0 {
		fmt.Fprintln(out, "No agents.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHORT\tLONG\tSPAN\tCURRENTLY")
	for _, a := range agents {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", a.Name, a.ShortTerm, a.LongTerm, a.AttentionSpan, a.Currently)
	}
	return tw.Flush()
}

func runAgentsCreate(cmd *cobra.Command, args []string) error {
	info, err := apiClient().CreateAgent(cmd.Context(), args[0], createCurrently, createSpan, createTraits)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (attention span %d)\n", info.Name, info.AttentionSpan)
	return nil
}

func runPerceive(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	var facts []memory.Fact
	if err := json.NewDecoder(r).Decode(&facts); err != nil {
		return fmt.Errorf("decode facts: %w", err)
	}

	res, err := apiClient().Perceive(cmd.Context(), args[0], facts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "batch %s: %d of %d facts stored\n", res.Batch, len(res.Created), len(facts))
	for _, c := range res.Created {
		fmt.Fprintf(out, "  #%d %s (impact %d)\n", c.ID, c.Description, c.Impact)
	}
	return nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	results, err := apiClient().Retrieve(cmd.Context(), args[0], whichMemory(retrieveLong), args[1:])
	if err != nil {
		return err
	}
	if retrieveLimit > 0 && len(results) > retrieveLimit {
		results = results[:retrieveLimit]
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No memories found.")
		return nil
	}
	for i, r := range results {
		printConcept(out, i+1, r)
	}
	return nil
}

func printConcept(w io.Writer, rank int, c engine.ConceptView) {
	score := ""
	if c.Score != nil {
		score = fmt.Sprintf("[%.3f] ", *c.Score)
	}
	fmt.Fprintf(w, "%d. %s#%d %s  %s\n", rank, score, c.ID, c.Kind, c.Description)
	fmt.Fprintf(w, "   created %s, impact %d", c.Created, c.Impact)
	if len(c.Filling) > 0 {
		ids := make([]string, len(c.Filling))
		for i, id := range c.Filling {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(w, ", from %s", strings.Join(ids, ","))
	}
	fmt.Fprintln(w)
}

func runForget(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("id must be an integer: %q", args[1])
	}
	which := whichMemory(forgetLong)
	if err := apiClient().Forget(cmd.Context(), args[0], which, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "forgot #%d from %s-term memory of %s\n", id, which, args[0])
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	doc, err := apiClient().Export(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if exportOut == "" {
		_, err := cmd.OutOrStdout().Write(doc)
		return err
	}
	if err := os.WriteFile(exportOut, doc, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", args[0], exportOut)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if !json.Valid(doc) {
		return fmt.Errorf("%s is not valid JSON", args[1])
	}
	info, err := apiClient().Import(cmd.Context(), args[0], doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d short-term, %d long-term concepts\n",
		info.Name, info.ShortTerm, info.LongTerm)
	return nil
}

func runTick(cmd *cobra.Command, args []string) error {
	steps := 1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("steps must be an integer: %q", args[0])
		}
		steps = n
	}
	st, err := apiClient().Tick(cmd.Context(), steps)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (tick %d)\n", st.Now, st.Ticks)
	return nil
}
