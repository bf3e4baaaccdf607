package transport

import (
	"strconv"
	"strings"
)

// budgetReportPrefix is the line prefix the transceiver uses to
// report remaining airtime, in units of 10 ms.
const budgetReportPrefix = "21  "

// parseBudgetReport extracts the millisecond budget from a "21  <n>"
// line. ok is false if line does not carry a budget report. A
// reported value of 0 is floored to 1 ms, so the session does not
// re-query on every iteration; the next staged frame then fails
// canSend, which zeroes the budget and triggers a refresh.
func parseBudgetReport(line string) (ms int, ok bool) {
	if !strings.HasPrefix(line, budgetReportPrefix) {
		return 0, false
	}
	rest := strings.TrimSpace(line[len(budgetReportPrefix):])
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	ms = n * 10
	if ms == 0 {
		ms = 1
	}
	return ms, true
}

// canSend reports whether budgetMs covers the cost of transmitting a
// frame frameChars characters long. The cost model (10 ms per
// character) is the source's, preserved verbatim.
func canSend(budgetMs, frameChars int) bool {
	return budgetMs >= 10*frameChars
}

// isTransmit reports whether line is an outbound MAX!/Moritz frame,
// which the transceiver bills against the cached budget by an amount
// this host cannot observe directly.
func isTransmit(line string) bool {
	return strings.HasPrefix(line, "Zs")
}

// isReceivedFrame reports whether line is an inbound MAX!/Moritz
// frame (as opposed to a budget report or banner).
func isReceivedFrame(line string) bool {
	return strings.HasPrefix(line, "Z") && !strings.HasPrefix(line, "Zs")
}
