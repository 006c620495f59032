package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlitoy/sqlitoy/internal/daemon"
	"github.com/sqlitoy/sqlitoy/pkg/config"
)

var daemonBackground bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the query server as a background process",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the query server daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemonStart()
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the query server daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemonStop()
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the query server daemon's status",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemonStatus()
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd)

	daemonStartCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	daemonStartCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (overrides config)")
	daemonStartCmd.Flags().BoolVarP(&daemonBackground, "background", "b", false, "run in the background")
}

func getDaemon() *daemon.Daemon {
	return daemon.New(config.ConfigDir(), Version)
}

func runDaemonStart() {
	d := getDaemon()
	if d.IsRunning() {
		status := d.Status()
		fmt.Printf("daemon already running (PID: %d)\n", status.PID)
		os.Exit(1)
	}

	if !daemonBackground {
		runServe()
		return
	}

	args := []string{"serve"}
	if servePort > 0 {
		args = append(args, "--port", fmt.Sprintf("%d", servePort))
	}
	if serveHost != "" {
		args = append(args, "--host", serveHost)
	}

	if err := d.Daemonize(args); err != nil {
		fmt.Fprintf(os.Stderr, "error starting daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("starting daemon...")
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if d.IsRunning() {
			status := d.Status()
			fmt.Printf("daemon started (PID: %d)\n", status.PID)
			fmt.Printf("listening on %s:%d\n", status.RESTHost, status.RESTPort)
			return
		}
	}
	fmt.Println("daemon failed to start (timeout)")
	os.Exit(1)
}

func runDaemonStop() {
	d := getDaemon()
	if !d.IsRunning() {
		fmt.Println("daemon is not running")
		return
	}
	status := d.Status()
	fmt.Printf("stopping daemon (PID: %d)...\n", status.PID)
	if err := d.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("daemon stopped")
}

func runDaemonStatus() {
	d := getDaemon()
	status := d.Status()
	if !status.Running {
		fmt.Println("daemon: stopped")
		return
	}
	fmt.Printf("daemon: running (PID: %d, uptime: %s)\n", status.PID, status.Uptime.Round(time.Second))
	fmt.Printf("listening on %s:%d\n", status.RESTHost, status.RESTPort)
}
