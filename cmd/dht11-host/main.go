// dht11-host reads a DHT11 wired to a Linux single-board computer.
//
// With -once or -loop it bit-bangs the sensor directly and logs each
// transaction. Otherwise it runs the config and HAL services on an
// in-process bus and logs what they publish until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dht11-go/bus"
	"dht11-go/drivers/dht11"
	"dht11-go/errcode"
	"dht11-go/services/config"
	"dht11-go/services/hal"
	"dht11-go/services/heartbeat"
	"dht11-go/types"
)

const loopInterval = 500 * time.Millisecond

func main() {
	godotenv.Load()
	env := LoadConfig()

	configFile := flag.String("config", env.ConfigFile, "YAML config file (default: embedded host config)")
	pin := flag.Int("pin", env.Pin, "GPIO number for -once and -loop")
	once := flag.Bool("once", false, "read the sensor once and exit")
	loop := flag.Bool("loop", false, "read the sensor every 500ms")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(env.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hal.PlatformInit(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialise GPIO host drivers")
	}

	switch {
	case *once:
		if _, err := readDirect(*pin); err != nil {
			os.Exit(1)
		}
	case *loop:
		runLoop(ctx, *pin)
	default:
		runServices(ctx, *configFile)
	}
}

// readDirect performs one transaction on pin and logs the outcome.
func readDirect(pin int) (dht11.Reading, error) {
	p, ok := hal.DefaultPins().ByNumber(pin)
	if !ok {
		log.Error().Int("pin", pin).Msg("unknown GPIO")
		return dht11.Reading{}, errcode.UnknownPin
	}
	timing := hal.DefaultTiming()
	dev := dht11.New(hal.NewLine(p), timing)

	var (
		r   dht11.Reading
		err error
	)
	timing.Critical(func() { r, err = dev.Read() })
	if err != nil {
		log.Warn().Err(err).Str("code", string(errcode.Of(err))).Int("pin", pin).Msg("read failed")
		return r, err
	}
	log.Info().
		Int("pin", pin).
		Float32("temperature_c", r.Temperature).
		Float32("humidity_rh", r.Humidity).
		Msg(r.String())
	return r, nil
}

// runLoop reads every loopInterval until ctx is done. Failed reads are
// simply logged; the next tick is the retry.
func runLoop(ctx context.Context, pin int) {
	tick := time.NewTicker(loopInterval)
	defer tick.Stop()
	for {
		readDirect(pin)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func runServices(ctx context.Context, configFile string) {
	b := bus.NewBus(32)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")
	monConn := b.NewConnection("monitor")

	svc := config.NewConfigService()
	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", configFile).Msg("error reading config file")
		}
		svc.Raw = raw
	}
	svc.OnError = func(err error) { log.Error().Err(err).Msg("config publish failed") }

	mon := monConn.Subscribe(bus.T("hal", "#"))
	defer monConn.Unsubscribe(mon)
	beats := monConn.Subscribe(bus.T("sys", "heartbeat"))
	defer monConn.Unsubscribe(beats)

	hb := &heartbeat.Service{}
	hb.Start(ctx, b.NewConnection("heartbeat"))

	done := make(chan struct{})
	go func() {
		hal.Run(ctx, halConn)
		close(done)
	}()
	svc.Start(context.WithValue(ctx, config.CtxDeviceKey, "host"), cfgConn)
	log.Info().Msg("services started")

	for {
		select {
		case <-ctx.Done():
			<-done
			log.Info().Msg("shutdown")
			return
		case m := <-mon.Channel():
			logMessage(m)
		case m := <-beats.Channel():
			if beat, ok := m.Payload.(heartbeat.Beat); ok {
				log.Debug().Uint32("seq", beat.Seq).Int64("uptime_s", beat.UptimeS).Msg("heartbeat")
			}
		}
	}
}

func logMessage(m *bus.Message) {
	topic := topicString(m.Topic)
	switch v := m.Payload.(type) {
	case types.TemperatureValue:
		log.Info().Str("topic", topic).Float64("celsius", float64(v.DeciC)/10).Msg("temperature")
	case types.HumidityValue:
		log.Info().Str("topic", topic).Float64("rh", float64(v.RHx100)/100).Msg("humidity")
	case types.CapabilityStatus:
		ev := log.Debug()
		if v.Link != types.LinkUp {
			ev = log.Warn()
		}
		ev.Str("topic", topic).Str("link", string(v.Link)).Str("error", v.Error).Msg("status")
	case types.HALState:
		log.Info().Str("level", v.Level).Str("status", v.Status).Str("error", v.Error).Msg("hal state")
	case nil:
		log.Debug().Str("topic", topic).Msg("cleared")
	default:
		log.Debug().Str("topic", topic).Interface("payload", v).Msg("message")
	}
}

func topicString(t bus.Topic) string {
	parts := make([]string, t.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(t.At(i))
	}
	return strings.Join(parts, "/")
}
