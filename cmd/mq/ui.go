package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"marquee/internal/game"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type filmsPayload struct {
	Films []game.FilmView `json:"films"`
}

type sessionsPayload struct {
	Sessions []game.SessionView `json:"sessions"`
}

type leaderboardPayload struct {
	Rows []game.LeaderboardRow `json:"rows"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderStudio(raw map[string]any) error {
	studio, err := decodeInto[game.StudioView](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== %s ==\n", strings.ToUpper(studio.Name))
	fmt.Printf("Week %d, Year %d\n", studio.CurrentWeek, studio.CurrentYear)
	fmt.Printf("Budget: %s\n", formatMoney(studio.Budget))
	if studio.AutoAdvance {
		printInfo("Auto-advance is ON.")
	}
	if len(studio.Films) == 0 {
		printInfo("No films yet. Run `mq greenlight`.")
		return nil
	}

	fmt.Printf("\n%-5s %-26s %-10s %-16s %14s\n", "ID", "TITLE", "GENRE", "PHASE", "TOTAL GROSS")
	for _, f := range studio.Films {
		fmt.Printf("%-5d %-26s %-10s %-16s %14s\n",
			f.ID,
			truncate(f.Title, 26),
			f.Genre,
			phaseLabel(f),
			formatMoney(f.TotalBoxOffice),
		)
	}
	fmt.Println()
	return nil
}

func renderFilmsList(raw map[string]any) error {
	out, err := decodeInto[filmsPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== FILMS ==\n")
	if len(out.Films) == 0 {
		printInfo("No films yet. Run `mq greenlight`.")
		return nil
	}
	fmt.Printf("%-5s %-26s %-10s %-16s %-9s %14s\n", "ID", "TITLE", "GENRE", "PHASE", "QUALITY", "TOTAL GROSS")
	for _, f := range out.Films {
		fmt.Printf("%-5d %-26s %-10s %-16s %-9d %14s\n",
			f.ID,
			truncate(f.Title, 26),
			f.Genre,
			phaseLabel(f),
			f.QualityScore,
			formatMoney(f.TotalBoxOffice),
		)
	}
	fmt.Println()
	return nil
}

func renderFilmCreated(raw map[string]any) error {
	f, err := decodeInto[game.FilmView](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Greenlit %q (film %d). Release scheduled for week %d, year %d.",
		f.Title, f.ID, f.ReleaseWeek, f.ReleaseYear))
	return nil
}

func renderFilmDetail(raw map[string]any) error {
	f, err := decodeInto[game.FilmView](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== %s ==\n", strings.ToUpper(f.Title))
	fmt.Printf("Genre: %s   Phase: %s   Quality: %d\n", f.Genre, phaseLabel(f), f.QualityScore)
	if f.Phase == "released" || f.Phase == "archived" {
		fmt.Printf("Critics: %d   Audience: %d   Theaters: %s\n", f.CriticScore, f.AudienceScore, comma(int64(f.TheaterCount)))
	}
	fmt.Printf("Release: week %d, year %d   Marketing: %s\n", f.ReleaseWeek, f.ReleaseYear, formatMoney(f.MarketingBudget))
	fmt.Printf("Total gross: %s\n", formatMoney(f.TotalBoxOffice))

	if len(f.WeeklyBoxOffice) > 0 {
		fmt.Printf("\n%-6s %16s\n", "WEEK", "GROSS")
		for i, v := range f.WeeklyBoxOffice {
			fmt.Printf("%-6d %16s\n", i+1, formatMoney(v))
		}
	}

	if len(f.TotalByTerritory) > 0 {
		type terr struct {
			code  string
			total int64
		}
		rows := make([]terr, 0, len(f.TotalByTerritory))
		for code, total := range f.TotalByTerritory {
			rows = append(rows, terr{code, total})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].total > rows[j].total })

		fmt.Printf("\n%-10s %16s\n", "TERRITORY", "TOTAL")
		for _, r := range rows {
			fmt.Printf("%-10s %16s\n", r.code, formatMoney(r.total))
		}
	}
	fmt.Println()
	return nil
}

func renderAdvanceReport(raw map[string]any) error {
	report, err := decodeInto[game.AdvanceReport](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== WEEK %d, YEAR %d ==\n", report.Week, report.Year)
	if len(report.Films) == 0 {
		printInfo("Nothing in the pipeline this week.")
	}
	for _, f := range report.Films {
		switch {
		case f.Archived:
			warn.Printf("%-26s left theaters (streaming deal signed)\n", truncate(f.Title, 26))
		case f.WeekRevenue > 0:
			fmt.Printf("%-26s %-16s %14s\n", truncate(f.Title, 26), f.Phase, formatMoney(f.WeekRevenue))
		default:
			fmt.Printf("%-26s %-16s\n", truncate(f.Title, 26), f.Phase)
		}
	}
	for _, c := range report.Credits {
		printSuccess(fmt.Sprintf("Budget credited %s (%s)", formatMoney(c.Amount), c.Reason))
	}
	if len(report.Skipped) > 0 {
		printWarn(fmt.Sprintf("%d film(s) skipped due to bad records.", len(report.Skipped)))
	}
	fmt.Println()
	return nil
}

func renderSession(raw map[string]any) error {
	v, err := decodeInto[game.SessionView](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== SESSION %s ==\n", v.Code)
	fmt.Printf("Status: %s   Week %d, Year %d   Seats: %d/%d\n",
		v.Status, v.CurrentWeek, v.CurrentYear, len(v.Players), v.MaxPlayers)
	if len(v.Players) > 0 {
		fmt.Printf("\n%-18s %-6s %-7s %-10s\n", "PLAYER", "HOST", "READY", "CONNECTED")
		for _, p := range v.Players {
			fmt.Printf("%-18s %-6s %-7s %-10s\n",
				truncate(p.Username, 18),
				yesNo(p.IsHost),
				yesNo(p.IsReady),
				yesNo(p.IsConnected),
			)
		}
	}
	fmt.Println()
	return nil
}

func renderSessionsList(raw map[string]any) error {
	out, err := decodeInto[sessionsPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== OPEN LOBBIES ==\n")
	if len(out.Sessions) == 0 {
		printInfo("No open lobbies. Run `mq sessions create`.")
		return nil
	}
	fmt.Printf("%-6s %-8s %-18s %-10s\n", "ID", "CODE", "HOST", "SEATS")
	for _, v := range out.Sessions {
		host := ""
		for _, p := range v.Players {
			if p.IsHost {
				host = p.Username
				break
			}
		}
		fmt.Printf("%-6d %-8s %-18s %d/%d\n", v.ID, v.Code, truncate(host, 18), len(v.Players), v.MaxPlayers)
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any) error {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== LEADERBOARD ==\n")
	if len(out.Rows) == 0 {
		printInfo("No leaderboard rows yet.")
		return nil
	}
	fmt.Printf("%-6s %-24s %-18s %16s\n", "RANK", "STUDIO", "BOSS", "TOTAL GROSS")
	for _, row := range out.Rows {
		fmt.Printf("%-6d %-24s %-18s %16s\n",
			row.Rank,
			truncate(row.StudioName, 24),
			truncate(row.Username, 18),
			formatMoney(row.TotalGross),
		)
	}
	fmt.Println()
	return nil
}

func renderSimpleOK(raw map[string]any, successMessage string) error {
	ok := false
	if v, has := raw["ok"]; has {
		if b, isBool := v.(bool); isBool {
			ok = b
		}
	}
	if ok || successMessage != "" {
		printSuccess(successMessage)
		return nil
	}
	printInfo("Done.")
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func phaseLabel(f game.FilmView) string {
	if f.Phase == "released" {
		return fmt.Sprintf("released (wk %d)", len(f.WeeklyBoxOffice))
	}
	if f.PhaseWeeksLeft > 0 {
		return fmt.Sprintf("%s (%d wk)", f.Phase, f.PhaseWeeksLeft)
	}
	return f.Phase
}

func formatMoney(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%s", sign, comma(v))
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return success.Sprint("yes")
	}
	return danger.Sprint("no")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
