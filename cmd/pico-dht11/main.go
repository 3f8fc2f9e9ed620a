package main

import (
	"context"
	"runtime"
	"time"

	"dht11-go/bus"
	"dht11-go/services/config"
	"dht11-go/services/hal"
	"dht11-go/services/heartbeat"
	"dht11-go/types"
)

func printTopicWith(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			print("/")
		}
		switch v := t.At(i).(type) {
		case string:
			print(v)
		case int:
			print(v)
		default:
			print("?")
		}
	}
	println()
}

// printPayload prints the payloads this firmware produces without fmt.
func printPayload(p any) {
	switch v := p.(type) {
	case types.TemperatureValue:
		println("  deci_c:", v.DeciC)
	case types.HumidityValue:
		println("  rh_x100:", v.RHx100)
	case types.CapabilityStatus:
		println("  link:", string(v.Link), "error:", v.Error)
	case types.HALState:
		println("  level:", v.Level, "status:", v.Status, "error:", v.Error)
	}
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")
	uiConn := b.NewConnection("ui")

	mon := uiConn.Subscribe(bus.T("hal", "#"))
	go func() {
		for m := range mon.Channel() {
			if m.Payload == nil {
				continue
			}
			printTopicWith("[monitor] <-", m.Topic)
			printPayload(m.Payload)
		}
	}()

	println("[main] starting hal.Run …")
	go hal.Run(ctx, halConn)

	hb := &heartbeat.Service{}
	hb.Start(ctx, b.NewConnection("heartbeat"))
	beats := uiConn.Subscribe(bus.T("sys", "heartbeat"))

	println("[main] publishing embedded config …")
	svc := config.NewConfigService()
	svc.OnError = func(err error) { println("[config] error:", err.Error()) }
	svc.Start(context.WithValue(ctx, config.CtxDeviceKey, "pico"), cfgConn)

	for m := range beats.Channel() {
		if beat, ok := m.Payload.(heartbeat.Beat); ok {
			println("[heartbeat]", beat.Seq, "uptime_s:", beat.UptimeS)
		}
		printMem()
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
