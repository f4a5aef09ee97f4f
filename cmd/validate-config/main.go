package main

import (
	"fmt"
	"os"

	"github.com/unusual-audio/workbench/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate-config <config-file>")
		os.Exit(1)
	}

	configPath := os.Args[1]
	fmt.Printf("📄 Loading config from: %s\n", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Config loaded successfully!\n")
	fmt.Printf("   Identity: %s\n", cfg.Identity)
	fmt.Printf("   SCPI port: %d\n", cfg.Server.Port)
	fmt.Printf("   Channels: %d\n", cfg.Channels.Count)
	fmt.Printf("     Frequency: %G..%G Hz (default %G)\n",
		*cfg.Channels.Frequency.Min, *cfg.Channels.Frequency.Max, *cfg.Channels.Frequency.Default)
	fmt.Printf("     Amplitude: %G..%G FS (default %G)\n",
		*cfg.Channels.Amplitude.Min, *cfg.Channels.Amplitude.Max, *cfg.Channels.Amplitude.Default)
	fmt.Printf("     Offset: %G..%G FS (default %G)\n",
		*cfg.Channels.Offset.Min, *cfg.Channels.Offset.Max, *cfg.Channels.Offset.Default)
	if cfg.Metrics.Port > 0 {
		fmt.Printf("   Metrics port: %d\n", cfg.Metrics.Port)
	} else {
		fmt.Printf("   Metrics: disabled\n")
	}
	if cfg.MQTT.Enabled {
		fmt.Printf("   MQTT broker: %s:%d\n", cfg.MQTT.Broker, cfg.MQTT.Port)
		fmt.Printf("     Status topic: %s\n", cfg.MQTT.StatusTopic)
		fmt.Printf("     Diagnostic topic: %s\n", cfg.MQTT.DiagnosticTopic)
	} else {
		fmt.Printf("   MQTT: disabled\n")
	}

	fmt.Println("\n✅ Configuration is valid!")
}
