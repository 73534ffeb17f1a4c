package hdhomerun

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"

	"github.com/iptvgw/gateway/internal/catalog"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
	"github.com/iptvgw/gateway/internal/emit"
)

// Lookup resolves the live channels a device's lineup advertises.
type Lookup interface {
	Iter(ctx context.Context, target string, cluster catalogmodel.Cluster) ([]catalogmodel.Channel, error)
}

var _ Lookup = (*catalog.Repository)(nil)

// Endpoint serves the per-device HDHomeRun HTTP discovery surface
// (device.xml, discover.json, lineup.json, lineup_status.json) spec
// §6 requires alongside SSDP.
type Endpoint struct {
	Device      Device
	Config      config.HDHomeRunDevice
	MaxChannels int
	Lookup      Lookup
	StreamURL   emit.StreamURLFunc
}

type deviceXML struct {
	XMLName     xml.Name `xml:"root"`
	Xmlns       string   `xml:"xmlns,attr"`
	SpecVersion specVersion
	Device      deviceXMLBody
}

type specVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type deviceXMLBody struct {
	DeviceType   string `xml:"deviceType"`
	FriendlyName string `xml:"friendlyName"`
	Manufacturer string `xml:"manufacturer"`
	ModelName    string `xml:"modelName"`
	ModelNumber  string `xml:"modelNumber"`
	SerialNumber string `xml:"serialNumber"`
	UDN          string `xml:"UDN"`
}

// ServeDeviceXML writes the UPnP device description document.
func (e *Endpoint) ServeDeviceXML(w http.ResponseWriter, r *http.Request) {
	body := deviceXML{
		Xmlns:       "urn:schemas-upnp-org:device-1-0",
		SpecVersion: specVersion{Major: 1, Minor: 0},
		Device: deviceXMLBody{
			DeviceType:   "urn:schemas-upnp-org:device:MediaServer:1",
			FriendlyName: e.Config.FriendlyName,
			Manufacturer: "Silicondust",
			ModelName:    "HDHomeRun EXTEND",
			ModelNumber:  "HDTC-2US",
			SerialNumber: e.Config.DeviceID,
			UDN:          "uuid:" + e.Device.UDN,
		},
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	enc.Encode(body)
}

type discoverInfo struct {
	FriendlyName    string `json:"FriendlyName"`
	ModelNumber     string `json:"ModelNumber"`
	FirmwareName    string `json:"FirmwareName"`
	FirmwareVersion string `json:"FirmwareVersion"`
	DeviceID        string `json:"DeviceID"`
	DeviceAuth      string `json:"DeviceAuth"`
	BaseURL         string `json:"BaseURL"`
	LineupURL       string `json:"LineupURL"`
	TunerCount      int    `json:"TunerCount"`
}

// ServeDiscoverJSON writes discover.json, the payload Plex's "add
// tuner" wizard and HDHomeRun clients use to identify the device.
func (e *Endpoint) ServeDiscoverJSON(w http.ResponseWriter, r *http.Request) {
	base := "http://" + e.Device.Host
	info := discoverInfo{
		FriendlyName:    e.Config.FriendlyName,
		ModelNumber:     "HDTC-2US",
		FirmwareName:    "hdhomerun_atsc",
		FirmwareVersion: "20160630",
		DeviceID:        e.Config.DeviceID,
		DeviceAuth:      "",
		BaseURL:         base,
		LineupURL:       base + "/lineup.json",
		TunerCount:      e.Config.TunerCount,
	}
	writeJSON(w, info)
}

// ServeLineupJSON writes lineup.json, the per-channel guide entries
// built from the live cluster of e.Config.Target.
func (e *Endpoint) ServeLineupJSON(w http.ResponseWriter, r *http.Request) {
	channels, err := e.Lookup.Iter(r.Context(), e.Config.Target, catalogmodel.ClusterLive)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emit.Lineup(channels, e.MaxChannels, e.StreamURL))
}

type lineupStatus struct {
	ScanInProgress int      `json:"ScanInProgress"`
	ScanPossible   int      `json:"ScanPossible"`
	Source         string   `json:"Source"`
	SourceList     []string `json:"SourceList"`
}

// ServeLineupStatusJSON writes lineup_status.json; the gateway never
// runs a channel scan of its own, so ScanInProgress/ScanPossible are
// always 0.
func (e *Endpoint) ServeLineupStatusJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, lineupStatus{
		ScanInProgress: 0,
		ScanPossible:   0,
		Source:         "Cable",
		SourceList:     []string{"Cable"},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

// Mount registers e's routes on mux under the conventional HDHomeRun
// paths.
func (e *Endpoint) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/device.xml", e.ServeDeviceXML)
	mux.HandleFunc("/discover.json", e.ServeDiscoverJSON)
	mux.HandleFunc("/lineup.json", e.ServeLineupJSON)
	mux.HandleFunc("/lineup_status.json", e.ServeLineupStatusJSON)
}
