// cubedb is a read-only inspection CLI for the cubed database.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

var (
	dbPath  string
	rootCmd = &cobra.Command{
		Use:   "cubedb",
		Short: "cubed database CLI",
		Long:  "Command-line tool for inspecting the cubed device and state-history database.",
	}

	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List all known devices",
		RunE:  listDevices,
	}

	historyCmd = &cobra.Command{
		Use:   "history [device-id]",
		Short: "Show state history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showHistory,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  showStats,
	}

	queryCmd = &cobra.Command{
		Use:   "query [sql]",
		Short: "Execute a raw SQL query",
		Args:  cobra.ExactArgs(1),
		RunE:  executeQuery,
	}

	limit int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "/var/lib/cubed/cubed.db", "Database file path")

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath+"?mode=ro")
}

func listDevices(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT id, serial, firmware, name, device_type, paired, first_seen, updated_at
		FROM devices ORDER BY updated_at DESC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERIAL\tFIRMWARE\tNAME\tTYPE\tPAIRED\tFIRST SEEN\tUPDATED")
	fmt.Fprintln(w, "--\t------\t--------\t----\t----\t------\t----------\t-------")

	for rows.Next() {
		var id uint32
		var serial, firmware, name sql.NullString
		var deviceType uint8
		var paired bool
		var firstSeen, updatedAt time.Time

		if err := rows.Scan(&id, &serial, &firmware, &name, &deviceType, &paired, &firstSeen, &updatedAt); err != nil {
			return err
		}

		pairedStr := "N"
		if paired {
			pairedStr = "Y"
		}

		fmt.Fprintf(w, "%06X\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			id, nullOrDash(serial), nullOrDash(firmware), nullOrDash(name), deviceType, pairedStr,
			firstSeen.Format("2006-01-02 15:04"), updatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var query string
	var queryArgs []interface{}

	if len(args) > 0 {
		query = `
			SELECT device_id, timestamp, mode, desired_temperature, measured_temperature, valve_position, signal_strength
			FROM state_history WHERE device_id = ? ORDER BY timestamp DESC LIMIT ?
		`
		queryArgs = []interface{}{args[0], limit}
	} else {
		query = `
			SELECT device_id, timestamp, mode, desired_temperature, measured_temperature, valve_position, signal_strength
			FROM state_history ORDER BY timestamp DESC LIMIT ?
		`
		queryArgs = []interface{}{limit}
	}

	rows, err := db.Query(query, queryArgs...)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tTIME\tMODE\tDESIRED\tMEASURED\tVALVE\tRSSI")
	fmt.Fprintln(w, "------\t----\t----\t-------\t--------\t-----\t----")

	for rows.Next() {
		var deviceID uint32
		var timestamp time.Time
		var mode string
		var desired float64
		var measured sql.NullFloat64
		var valve, rssi uint8

		if err := rows.Scan(&deviceID, &timestamp, &mode, &desired, &measured, &valve, &rssi); err != nil {
			return err
		}

		measuredStr := "-"
		if measured.Valid {
			measuredStr = fmt.Sprintf("%.1f", measured.Float64)
		}

		fmt.Fprintf(w, "%06X\t%s\t%s\t%.1f\t%s\t%d%%\t%d\n",
			deviceID, timestamp.Format("01-02 15:04:05"), mode, desired, measuredStr, valve, rssi)
	}
	w.Flush()
	return nil
}

func showStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Database Statistics")
	fmt.Println("===================")

	var deviceCount int
	db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&deviceCount)
	fmt.Printf("Devices: %d\n", deviceCount)

	var pairedCount int
	db.QueryRow("SELECT COUNT(*) FROM devices WHERE paired = 1").Scan(&pairedCount)
	fmt.Printf("Paired devices: %d\n", pairedCount)

	var historyCount int
	db.QueryRow("SELECT COUNT(*) FROM state_history").Scan(&historyCount)
	fmt.Printf("State history records: %d\n", historyCount)

	return nil
}

func executeQuery(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	query := args[0]

	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed")
	}

	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	fmt.Fprintln(w, strings.Repeat("-\t", len(cols)))

	values := make([]interface{}, len(cols))
	valuePtrs := make([]interface{}, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		var row []string
		for _, v := range values {
			switch val := v.(type) {
			case nil:
				row = append(row, "NULL")
			case []byte:
				row = append(row, string(val))
			default:
				row = append(row, fmt.Sprintf("%v", val))
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	return nil
}

func nullOrDash(s sql.NullString) string {
	if s.Valid && s.String != "" {
		return s.String
	}
	return "-"
}
