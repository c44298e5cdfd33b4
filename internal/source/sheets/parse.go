package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dtroode/kurisync/internal/model"
)

// Column layout of the registry ranges.
const (
	userColID = iota
	userColAddress
	userColName
	userColBalance
	userColPoints
	userColLedgers
)

const (
	ledgerColID = iota
	ledgerColAddress
)

var rangeStartRow = regexp.MustCompile(`![A-Za-z]+(\d+)`)

// firstRow is the spreadsheet row number of the first value in rng.
func firstRow(rng string) int {
	m := rangeStartRow.FindStringSubmatch(rng)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func blank(row []any) bool {
	for i := range row {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}

func malformed(rng string, row int, format string, args ...any) error {
	return fmt.Errorf("%w: %s row %d: %s", model.ErrSourceMalformed, rng, row, fmt.Sprintf(format, args...))
}

func parseUsers(rng string, rows [][]any) ([]model.User, error) {
	start := firstRow(rng)
	users := make([]model.User, 0, len(rows))

	for i, row := range rows {
		if blank(row) {
			continue
		}
		line := start + i

		id, err := strconv.ParseInt(cell(row, userColID), 10, 64)
		if err != nil {
			return nil, malformed(rng, line, "id %q is not an integer", cell(row, userColID))
		}

		address, err := model.ParseAddress(cell(row, userColAddress))
		if err != nil {
			return nil, malformed(rng, line, "wallet address: %v", err)
		}

		var balance float64
		if raw := cell(row, userColBalance); raw != "" {
			balance, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, malformed(rng, line, "balance %q is not a number", raw)
			}
		}

		var points int64
		if raw := cell(row, userColPoints); raw != "" {
			points, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, malformed(rng, line, "points %q is not an integer", raw)
			}
		}

		users = append(users, model.User{
			ID:            id,
			WalletAddress: address,
			Name:          cell(row, userColName),
			Balance:       balance,
			Points:        points,
			Ledgers:       splitList(cell(row, userColLedgers)),
		})
	}

	return users, nil
}

func parseLedgers(rng string, rows [][]any) ([]model.LedgerRef, error) {
	start := firstRow(rng)
	ledgers := make([]model.LedgerRef, 0, len(rows))

	for i, row := range rows {
		if blank(row) {
			continue
		}
		line := start + i

		id, err := strconv.ParseInt(cell(row, ledgerColID), 10, 64)
		if err != nil {
			return nil, malformed(rng, line, "id %q is not an integer", cell(row, ledgerColID))
		}

		address, err := model.ParseAddress(cell(row, ledgerColAddress))
		if err != nil {
			return nil, malformed(rng, line, "contract address: %v", err)
		}

		ledgers = append(ledgers, model.LedgerRef{ID: id, ContractAddress: address})
	}

	return ledgers, nil
}

// splitList splits a comma separated cell, dropping empty items.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := model.NormalizeAddress(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
