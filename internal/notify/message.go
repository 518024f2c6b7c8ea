package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

const clockFormat = "03:04 PM"

// Kind identifies the type of a notification message
type Kind string

const (
	KindArrival Kind = "arrival"
	KindError   Kind = "error"
	KindReport  Kind = "report"
)

// FormatArrival renders the message announcing a recorded arrival
func FormatArrival(arrival attendance.Arrival) string {
	entry := arrival.Entry
	var b strings.Builder
	switch entry.Status {
	case attendance.StatusLate:
		b.WriteString("🚨 Late Arrival Detected:\n")
		fmt.Fprintf(&b, "License Plate: %s\n", entry.LicensePlate)
		fmt.Fprintf(&b, "Employee: %s\n", entry.EmployeeName)
		if entry.MinutesLate != nil {
			fmt.Fprintf(&b, "Minutes Late: %d\n", *entry.MinutesLate)
		}
		if arrival.ExpectedArrival != nil {
			fmt.Fprintf(&b, "Expected: %s\n", arrival.ExpectedArrival.Kitchen())
		}
	case attendance.StatusOnTime:
		b.WriteString("✅ On-Time Arrival:\n")
		fmt.Fprintf(&b, "License Plate: %s\n", entry.LicensePlate)
		fmt.Fprintf(&b, "Employee: %s\n", entry.EmployeeName)
	default:
		b.WriteString("⚠️ Unknown Vehicle Detected:\n")
		fmt.Fprintf(&b, "License Plate: %s\n", entry.LicensePlate)
	}
	fmt.Fprintf(&b, "Time: %s", entry.Timestamp.Format(clockFormat))
	return b.String()
}

// FormatError renders a system error message
func FormatError(message string, at time.Time) string {
	return fmt.Sprintf("❌ System Error:\n%s\nTime: %s", message, at.Format(clockFormat))
}

// FormatReport renders the summary report message
func FormatReport(summary attendance.Summary, at time.Time) string {
	return fmt.Sprintf("📊 Summary Report:\nTotal Entries: %d\nOn Time: %d\nLate: %d\nInvalid/Unknown: %d\nTime: %s",
		summary.Total, summary.OnTime, summary.Late, summary.Invalid, at.Format(clockFormat))
}
