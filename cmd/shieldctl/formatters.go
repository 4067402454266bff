package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printField(w io.Writer, label, value string) {
	infoColor.Fprintf(w, "  %-22s", label+":")
	fmt.Fprintln(w, value)
}

func severityColor(s threat.Severity) *color.Color {
	switch s {
	case threat.SeverityCritical:
		return errorColor
	case threat.SeverityHigh:
		return warningColor
	default:
		return infoColor
	}
}

func onOff(active bool) string {
	if active {
		return errorColor.Sprint("ACTIVE")
	}
	return successColor.Sprint("off")
}

func renderHealth(w io.Writer, h monitor.Health) {
	headerColor.Fprintf(w, "HEALTH %s\n", h.Timestamp.Format(time.RFC3339))
	printField(w, "DDoS protection", h.DDoSProtection)
	printField(w, "Rate limiting", h.RateLimiting)
	printField(w, "Admin protection", h.AdminProtection)
	printField(w, "State", string(h.State))
	printField(w, "Emergency mode", onOff(h.EmergencyMode))
	printField(w, "Admin emergency mode", onOff(h.AdminEmergencyMode))
	printField(w, "Requests per minute", fmt.Sprint(h.RequestsPerMinute))
	printField(w, "Blocked addresses", fmt.Sprint(h.BlockedIPCount))
	store := successColor.Sprint(h.Store)
	if h.Store != monitor.StoreOK {
		store = errorColor.Sprint(h.Store)
	}
	printField(w, "Store", store)
}

func renderThreats(w io.Writer, threats []threat.ActiveThreat) {
	if len(threats) == 0 {
		successColor.Fprintln(w, "No active threats")
		return
	}
	headerColor.Fprintf(w, "ACTIVE THREATS (%d)\n", len(threats))
	for _, t := range threats {
		severityColor(t.Severity).Fprintf(w, "  [%-8s] ", t.Severity)
		fmt.Fprintf(w, "%-22s %s", t.Type, t.Description)
		if t.SourceIP != "" {
			fmt.Fprintf(w, " (%s)", t.SourceIP)
		}
		if t.ExpiresIn > 0 {
			fmt.Fprintf(w, ", expires in %ds", t.ExpiresIn)
		}
		fmt.Fprintln(w)
	}
}

func renderReport(w io.Writer, r *monitor.Report) {
	headerColor.Fprintln(w, strings.Repeat("=", 64))
	headerColor.Fprintf(w, "  SECURITY REPORT %s\n", r.ReportID)
	headerColor.Fprintln(w, strings.Repeat("=", 64))
	printField(w, "Generated", r.GeneratedAt.UTC().Format(time.RFC3339))
	printField(w, "Period", r.Period)
	printField(w, "State", string(r.State))
	printField(w, "Total requests", fmt.Sprint(r.Summary.TotalRequests))
	printField(w, "Blocked requests", fmt.Sprint(r.Summary.BlockedRequests))
	printField(w, "Threats detected", fmt.Sprint(r.Summary.ThreatsDetected))
	printField(w, "Active bans", fmt.Sprint(r.Summary.ActiveBans))
	fmt.Fprintln(w)

	renderThreats(w, r.ActiveThreats)
	fmt.Fprintln(w)

	if len(r.TopAttackTypes) > 0 {
		headerColor.Fprintln(w, "TOP ATTACK TYPES")
		for _, a := range r.TopAttackTypes {
			fmt.Fprintf(w, "  %-24s %d\n", a.Type, a.Count)
		}
		fmt.Fprintln(w)
	}

	if len(r.GeographicAnalysis) > 0 {
		headerColor.Fprintln(w, "BLOCKED ADDRESSES BY COUNTRY")
		countries := make([]string, 0, len(r.GeographicAnalysis))
		for c := range r.GeographicAnalysis {
			countries = append(countries, c)
		}
		sort.Slice(countries, func(i, j int) bool {
			ci, cj := r.GeographicAnalysis[countries[i]], r.GeographicAnalysis[countries[j]]
			if ci != cj {
				return ci > cj
			}
			return countries[i] < countries[j]
		})
		for _, c := range countries {
			fmt.Fprintf(w, "  %-8s %d\n", c, r.GeographicAnalysis[c])
		}
		fmt.Fprintln(w)
	}

	headerColor.Fprintln(w, "RECOMMENDATIONS")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}
