package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tonegen/host/mcu"
	"tonegen/host/serial"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud   = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
)

func main() {
	flag.Parse()

	fmt.Println("tone-host - tone generator control console")
	fmt.Println()

	mcuConn := mcu.NewMCU()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to device on %s...\n", *device)
	if err := mcuConn.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer mcuConn.Close()

	if err := mcuConn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}

	mcuConn.PrintDictionary()

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			mcuConn.PrintDictionary()

		case "raw":
			raw := mcuConn.GetDictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), string(raw))

		case "config":
			err = doConfig(mcuConn, args)

		case "play":
			err = doPlay(mcuConn, args)

		case "stop":
			err = doStop(mcuConn, args)

		case "query":
			err = doQuery(mcuConn, args)

		case "scale":
			err = doScale(mcuConn, args)

		case "estop":
			err = mcuConn.EmergencyStop()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  config <oid> <pin+> [pin-]          - Configure a tone output (two pins = differential)")
	fmt.Println("  play <oid> <freq> <volume> <ms>     - Play a tone (freq Hz, volume 0-100)")
	fmt.Println("  stop <oid>                          - Stop a tone output")
	fmt.Println("  query <oid>                         - Query playback progress")
	fmt.Println("  scale <oid> <volume>                - Play a C major scale")
	fmt.Println("  estop                               - Emergency stop, silence everything")
	fmt.Println("  dict                                - Print dictionary summary")
	fmt.Println("  raw                                 - Print raw dictionary data")
	fmt.Println("  quit/exit/q                         - Exit the program")
	fmt.Println()
}

func doConfig(mcuConn *mcu.MCU, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: config <oid> <pin+> [pin-]")
	}

	oid, err := parseUint(args[0], 255)
	if err != nil {
		return fmt.Errorf("bad oid: %w", err)
	}
	pinPlus, err := parseUint(args[1], 29)
	if err != nil {
		return fmt.Errorf("bad pin+: %w", err)
	}

	differential := len(args) == 3
	pinMinus := pinPlus
	if differential {
		pinMinus, err = parseUint(args[2], 29)
		if err != nil {
			return fmt.Errorf("bad pin-: %w", err)
		}
	}

	if err := mcuConn.ConfigureTone(uint8(oid), pinPlus, pinMinus, differential); err != nil {
		return err
	}

	if differential {
		fmt.Printf("Configured oid %d: differential gpio%d/gpio%d\n", oid, pinPlus, pinMinus)
	} else {
		fmt.Printf("Configured oid %d: single-ended gpio%d\n", oid, pinPlus)
	}
	return nil
}

func doPlay(mcuConn *mcu.MCU, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: play <oid> <freq> <volume> <ms>")
	}

	oid, err := parseUint(args[0], 255)
	if err != nil {
		return fmt.Errorf("bad oid: %w", err)
	}
	freq, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("bad freq: %w", err)
	}
	volume, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad volume: %w", err)
	}
	durationMS, err := parseUint(args[3], 1<<31)
	if err != nil {
		return fmt.Errorf("bad duration: %w", err)
	}

	return mcuConn.PlayTone(uint8(oid), freq, volume, durationMS, mcu.TimeMS)
}

func doStop(mcuConn *mcu.MCU, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stop <oid>")
	}

	oid, err := parseUint(args[0], 255)
	if err != nil {
		return fmt.Errorf("bad oid: %w", err)
	}

	return mcuConn.StopTone(uint8(oid))
}

func doQuery(mcuConn *mcu.MCU, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: query <oid>")
	}

	oid, err := parseUint(args[0], 255)
	if err != nil {
		return fmt.Errorf("bad oid: %w", err)
	}

	state, err := mcuConn.QueryTone(uint8(oid))
	if err != nil {
		return err
	}

	fmt.Printf("oid %d: active=%v repeats=%d\n", state.OID, state.Active, state.Repeats)
	return nil
}

// doScale plays one octave of C major, one note per 300ms
func doScale(mcuConn *mcu.MCU, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: scale <oid> <volume>")
	}

	oid, err := parseUint(args[0], 255)
	if err != nil {
		return fmt.Errorf("bad oid: %w", err)
	}
	volume, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("bad volume: %w", err)
	}

	notes := []float64{261.63, 293.66, 329.63, 349.23, 392.00, 440.00, 493.88, 523.25}
	for _, freq := range notes {
		if err := mcuConn.PlayTone(uint8(oid), freq, volume, 250, mcu.TimeMS); err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond)
	}

	return mcuConn.StopTone(uint8(oid))
}

func parseUint(s string, max uint64) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, fmt.Errorf("value %d out of range (max %d)", v, max)
	}
	return uint32(v), nil
}
