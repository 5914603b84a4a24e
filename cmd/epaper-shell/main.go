// Command epaper-shell is an interactive diagnostic REPL for bench
// debugging a TX or RX endpoint.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/pflag"

	"epaperlink/device"
	"epaperlink/line"
	"epaperlink/protocol"
)

func main() {
	var (
		deviceFlag = pflag.StringP("device", "d", "/dev/epaper_tx", "link device path")
		role       = pflag.StringP("role", "r", "tx", "endpoint role: tx|rx")
	)
	pflag.Parse()

	fmt.Println("epaperlink diagnostic shell")
	fmt.Println("===========================")

	switch *role {
	case "tx":
		runTXShell(*deviceFlag)
	case "rx":
		runRXShell(*deviceFlag)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown role %q (want tx or rx)\n", *role)
		os.Exit(1)
	}
}

func runTXShell(devicePath string) {
	tx, err := line.OpenSerialTX(line.Config{Device: devicePath, Baud: 250000})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		os.Exit(1)
	}

	endpoint := device.NewTXEndpoint(tx, protocol.DefaultTiming(), nil)
	if err := endpoint.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open: %v\n", err)
		os.Exit(1)
	}
	defer endpoint.Close()

	fmt.Printf("Connected to %s (tx)\n", devicePath)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("tx> ")
		if !scanner.Scan() {
			break
		}

		parts, err := shlex.Split(scanner.Text())
		if err != nil || len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printTXHelp()

		case "status":
			st := endpoint.Status()
			fmt.Printf("active=%t handshake=%t error=%t last_seq=%d retries=%d\n",
				st.TransmissionActive, st.HandshakeComplete, st.ErrorState, st.LastSeqSent, st.RetryCount)

		case "stats":
			s := endpoint.Stats()
			fmt.Printf("sent=%d bytes=%d retries=%d handshakes_ok=%d handshakes_failed=%d timeouts=%d nacks=%d\n",
				s.TotalPacketsSent, s.TotalBytesSent, s.TotalRetries, s.SuccessfulHandshakes,
				s.FailedHandshakes, s.Timeouts, s.NacksReceived)

		case "reset":
			endpoint.ResetState()
			fmt.Println("state reset")

		case "reset-stats":
			endpoint.ResetStats()
			fmt.Println("stats reset")

		case "send":
			if len(parts) < 2 {
				fmt.Println("usage: send <text>")
				continue
			}
			n, err := endpoint.Write(context.Background(), []byte(parts[1]))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("sent %d bytes\n", n)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
	}
}

func printTXHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status          - GET_STATUS ioctl-equivalent")
	fmt.Println("  stats           - GET_STATS ioctl-equivalent")
	fmt.Println("  reset           - RESET_STATE ioctl-equivalent")
	fmt.Println("  reset-stats     - RESET_STATS ioctl-equivalent")
	fmt.Println("  send <text>     - write text as a payload")
	fmt.Println("  quit/exit/q     - exit the shell")
	fmt.Println()
}

func runRXShell(devicePath string) {
	rx, err := line.OpenSerialRX(line.Config{Device: devicePath, Baud: 250000})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		os.Exit(1)
	}

	endpoint := device.NewRXEndpoint(rx, 4096, protocol.DefaultTiming(), nil)
	if err := endpoint.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open: %v\n", err)
		os.Exit(1)
	}
	defer endpoint.Close()

	fmt.Printf("Connected to %s (rx)\n", devicePath)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("rx> ")
		if !scanner.Scan() {
			break
		}

		parts, err := shlex.Split(scanner.Text())
		if err != nil || len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printRXHelp()

		case "reset":
			endpoint.Reset()
			fmt.Println("state reset")

		case "ready":
			fmt.Printf("image_ready=%t\n", endpoint.ImageReady())

		case "stats":
			s := endpoint.Stats()
			fmt.Printf("accepted=%d rejected=%d crc_mismatches=%d seq_mismatches=%d forced_resets=%d\n",
				s.PacketsAccepted, s.PacketsRejected, s.CRCMismatches, s.SeqMismatches, s.ForcedResets)

		case "drain":
			buf := make([]byte, 4096)
			n := endpoint.TryRead(buf)
			fmt.Printf("drained %d bytes: %x\n", n, buf[:n])

		case "wait":
			timeout := 5 * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			buf := make([]byte, 64)
			n, err := endpoint.Read(ctx, buf)
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("read %d bytes: %x\n", n, buf[:n])

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
	}
}

func printRXHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  reset           - 0x1001 RX ioctl-equivalent")
	fmt.Println("  ready           - 0x1002 RX ioctl-equivalent (image ready)")
	fmt.Println("  stats           - RX-side counters")
	fmt.Println("  drain           - non-blocking read of whatever is buffered")
	fmt.Println("  wait            - blocking read with a 5s timeout")
	fmt.Println("  quit/exit/q     - exit the shell")
	fmt.Println()
}
