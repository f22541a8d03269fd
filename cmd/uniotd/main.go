// Command uniotd is the Uniot Core host process: it wires every
// component (storage, credentials, scheduler, event bus, network
// state machine + captive portal, Lisp runtime, MQTT bridge, and the
// Lisp/top devices) into one running device, the Go reading of the
// original firmware's single superloop (spec §5).
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uniot-io/uniot-core/internal/buffer"
	"github.com/uniot-io/uniot-core/internal/button"
	"github.com/uniot-io/uniot-core/internal/config"
	"github.com/uniot-io/uniot-core/internal/credentials"
	"github.com/uniot-io/uniot-core/internal/eventbus"
	"github.com/uniot-io/uniot-core/internal/lisp"
	"github.com/uniot-io/uniot-core/internal/lispdevice"
	"github.com/uniot-io/uniot-core/internal/mqttbridge"
	"github.com/uniot-io/uniot-core/internal/network"
	"github.com/uniot-io/uniot-core/internal/network/captiveportal"
	"github.com/uniot-io/uniot-core/internal/scheduler"
	"github.com/uniot-io/uniot-core/internal/storage"
	"github.com/uniot-io/uniot-core/internal/topdevice"
)

func main() {
	configPath := flag.String("config", "./uniotd.yaml", "path to the device config file")
	flag.Parse()

	logger := log.New(os.Stderr, "[uniotd] ", log.LstdFlags)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	fileStore, err := storage.NewFileStore(cfg.Storage.BaseDir)
	if err != nil {
		logger.Fatalf("mount storage: %v", err)
	}
	defer fileStore.Close()

	creds, err := loadOrCreateCredentials(fileStore, cfg.CreatorID)
	if err != nil {
		logger.Fatalf("load credentials: %v", err)
	}

	sched := scheduler.New()
	bus := eventbus.New()
	bus.OpenDataChannel(buffer.ChannelOutLisp, 8)
	bus.OpenDataChannel(buffer.ChannelOutLispLog, 8)
	bus.OpenDataChannel(buffer.ChannelOutLispErr, 8)
	bus.OpenDataChannel(buffer.ChannelOutEvent, 8)

	wifiDoc, err := storage.NewCBORStorage[storage.WiFiDoc](fileStore, storage.KeyWiFi)
	if err != nil {
		logger.Fatalf("restore wifi doc: %v", err)
	}
	ctrlDoc, err := storage.NewCBORStorage[storage.CtrlDoc](fileStore, storage.KeyCtrl)
	if err != nil {
		logger.Fatalf("restore ctrl doc: %v", err)
	}
	lispDoc, err := storage.NewCBORStorage[storage.LispDoc](fileStore, storage.KeyLisp)
	if err != nil {
		logger.Fatalf("restore lisp doc: %v", err)
	}

	initial := network.StateDisconnected
	if wifiDoc.Get().SSID == "" {
		initial = network.StateAPConfig
	}
	netMachine := network.New(initial, network.Config{MaxRetries: cfg.Network.MaxRetries}, func(from, to network.State, ev network.Event) {
		logger.Printf("network: %s -> %s (event %d)", from, to, ev)
		up := int32(0)
		if to == network.StateConnected {
			up = 1
		}
		bus.EmitEvent(buffer.TopicNetworkConnection, up)
	})

	netController := network.NewController(netMachine, ctrlDoc, func() {
		logger.Println("network: forget requested, clearing stored credentials")
		wifiDoc.Set(storage.WiFiDoc{})
		wifiDoc.Store()
	})

	connector := network.NewConnector(loggingSTA{logger: logger})
	if initial == network.StateDisconnected {
		bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
		doc := wifiDoc.Get()
		netMachine.Transition(network.StateDisconnected, network.StateConnecting, network.EventConnecting, time.Now())
		if err := connector.Connect(bootCtx, doc.SSID, doc.Pass, cfg.Network.MaxRetries); err != nil {
			netMachine.RecordFailure(err == network.ErrWrongPassword)
			netMachine.Transition(network.StateConnecting, network.StateFailed, network.EventFailed, time.Now())
			netMachine.Transition(network.StateFailed, network.StateAPConfig, network.EventAccessPoint, time.Now())
		} else {
			netMachine.Transition(network.StateConnecting, network.StateConnected, network.EventSuccess, time.Now())
		}
		bootCancel()
	}

	apIP, _, err := net.ParseCIDR(cfg.Network.APIPAddress)
	if err != nil {
		apIP = net.ParseIP(cfg.Network.APIPAddress)
	}

	portalHandlers := captiveportal.Handlers{
		DeviceID:  creds.DeviceID(),
		AccountID: func() string { return creds.OwnerID() },
		ScanNetworks: func() [][4]any {
			var src network.ScanSource = &network.FakeScanSource{}
			found, err := src.Scan()
			if err != nil {
				return nil
			}
			nets := make([][4]any, 0, len(found))
			for _, ssid := range found {
				nets = append(nets, [4]any{"", ssid, 0, false})
			}
			return nets
		},
		HomeNetwork: func() string { return wifiDoc.Get().SSID },
		Save: func(ssid, pass, acc string) {
			wifiDoc.Set(storage.WiFiDoc{SSID: ssid, Pass: pass})
			wifiDoc.Store()
			if acc != "" {
				creds.SetOwnerID(acc)
			}
		},
		Ask: func() bool { return true },
	}
	portal := captiveportal.NewServer(portalHandlers)

	shell := lisp.New(bus, sched)
	lispDev := lispdevice.New(
		"dev/"+creds.DeviceID()+"/script",
		"owner/"+creds.OwnerID()+"/event/+",
		shell, lispDoc,
	)
	if err := lispDev.Boot(); err != nil {
		logger.Printf("lisp boot: %v", err)
	}

	bridge := mqttbridge.New(creds, bus, cfg.MQTT.Broker)
	bus.RegisterEntity(bridge)
	bridge.AddDevice(lispDev)
	bridge.AddDevice(lispDev.GroupEvents())

	topDev := topdevice.New(sched, "dev/"+creds.DeviceID()+"/top", "dev/"+creds.DeviceID()+"/mem", func(topic string, payload []byte) {
		// The top device's responses are dropped here: nothing
		// forwards them to the MQTT bridge.
	})
	topDev.SetStarted(time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// While parked in AP_CONFIG (captive portal up, no home network
	// joined), periodically scan for the stored SSID coming back into
	// range and auto-reconnect once seen (spec §4.I AVAILABLE_SEEN). The
	// scan source wired here is an empty network.FakeScanSource, which
	// reports no networks, so this task never finds the stored SSID.
	scanTask := sched.CreateTask(func(int) {
		ssid := wifiDoc.Get().SSID
		if ssid == "" || netMachine.Current() != network.StateAPConfig {
			return
		}
		var src network.ScanSource = &network.FakeScanSource{}
		found, err := src.Scan()
		if err != nil {
			return
		}
		if !network.ContainsSSID(found, ssid) {
			return
		}
		if err := netMachine.Transition(network.StateAPConfig, network.StateAvailableSeen, network.EventAvailable, time.Now()); err != nil {
			return
		}

		doc := wifiDoc.Get()
		if err := connector.Connect(ctx, doc.SSID, doc.Pass, cfg.Network.MaxRetries); err != nil {
			netMachine.RecordFailure(err == network.ErrWrongPassword)
			netMachine.Transition(network.StateAvailableSeen, network.StateAPConfig, network.EventAccessPoint, time.Now())
			return
		}
		netMachine.ResetRetries()
		netMachine.Transition(network.StateAvailableSeen, network.StateConnected, network.EventSuccess, time.Now())
	})
	sched.Push("wifi-scan", scanTask)
	scanTask.Attach(time.Duration(cfg.Network.ScanPeriodSec)*time.Second, 0)

	resetButton := button.New(0, button.Low, 30, 100, func(e button.Event) {
		netController.OnButtonEvent(e)
	})
	buttonTask := sched.CreateTask(func(int) {
		resetButton.Tick(noopReader{})
	})
	sched.Push("button", buttonTask)
	buttonTask.Attach(10*time.Millisecond, 0)

	topTask := sched.CreateTask(func(int) {
		topDev.HandleTopAsk(time.Now())
	})
	sched.Push("top-export", topTask)
	topTask.Attach(30*time.Second, 0)

	// Reboot-loop recovery (spec §4.J): increment the persisted counter
	// at boot and, once it crosses the default threshold of 3 within
	// RebootWindow, call ForceForget, which clears the stored WiFi
	// credentials without changing the machine's state; a one-shot task
	// then zeroes the counter once the device has stayed up past the window.
	const rebootLoopThreshold = 3
	if loop, err := netController.RecordBoot(rebootLoopThreshold); err != nil {
		logger.Printf("network: record boot: %v", err)
	} else if loop {
		logger.Println("network: reboot loop detected, forgetting stored credentials")
		netController.ForceForget()
	}

	bootWindowTask := sched.CreateTask(func(int) {
		if err := netController.ClearBootCounter(); err != nil {
			logger.Printf("network: clear boot counter: %v", err)
		}
	})
	sched.Push("boot-counter-window", bootWindowTask)
	bootWindowTask.Once(network.RebootWindow)

	go func() {
		if err := portal.ListenAndServeHTTP(":80"); err != nil {
			logger.Printf("captive portal http: %v", err)
		}
	}()
	go func() {
		if err := portal.ListenAndServeDNS(":53", apIP); err != nil {
			logger.Printf("captive portal dns: %v", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bus.Execute()
			}
		}
	}()

	logger.Printf("uniotd started, device id %s", creds.DeviceID())
	sched.Run(ctx, time.Duration(cfg.Scheduler.TickMS)*time.Millisecond)

	logger.Println("shutting down")
	portal.StopWebSockets()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	portal.StopHTTP(shutdownCtx)
}

// noopReader stands in for a real GPIO reader until one is wired to
// an actual platform HAL; the button always reads released.
type noopReader struct{}

func (noopReader) Read(pin uint8) button.Level { return button.High }

// loggingSTA stands in for a real WiFi station HAL: there is no
// portable Go radio driver in the pack to join an actual AP with, so
// it reports every attempt as a wrong-password failure, forcing the
// network machine through its documented failure path rather than
// silently pretending to succeed. A platform build swaps this for a
// real STA implementation.
type loggingSTA struct {
	logger *log.Logger
}

func (s loggingSTA) Connect(ctx context.Context, ssid, password string) error {
	s.logger.Printf("network: no WiFi radio HAL wired, cannot connect to %q", ssid)
	return network.ErrWrongPassword
}

// loadOrCreateCredentials restores a previously persisted identity
// (MAC-derived device id, Ed25519 key, owner account) from
// /credentials.cbor, or mints and persists a fresh one on first boot
// (spec §4.C/§4.D).
func loadOrCreateCredentials(store storage.Store, creatorID string) (*credentials.Credentials, error) {
	credDoc, err := storage.NewCBORStorage[storage.CredentialsDoc](store, storage.KeyCredentials)
	if err != nil {
		return nil, err
	}
	doc := credDoc.Get()

	if len(doc.Mac) == 6 && len(doc.PrivateKey) == ed25519.PrivateKeySize {
		var mac [6]byte
		copy(mac[:], doc.Mac)
		creds := credentials.FromKey(mac, creatorID, ed25519.PrivateKey(doc.PrivateKey))
		if doc.Account != "" {
			creds.SetOwnerID(doc.Account)
			creds.ClearDirty()
		}
		return creds, nil
	}

	var mac [6]byte
	if _, err := rand.Read(mac[:]); err != nil {
		return nil, err
	}
	creds, err := credentials.New(mac, creatorID)
	if err != nil {
		return nil, err
	}

	credDoc.Set(storage.CredentialsDoc{Mac: mac[:], PrivateKey: creds.PrivateKeyBytes()})
	if _, err := credDoc.Store(); err != nil {
		return nil, err
	}
	return creds, nil
}
