package trackgw

// Network carries the cell towers and WiFi access points observed at
// the moment of a position fix. Passive container; consumers use it
// for approximate (LBS) positioning.
type Network struct {
	CellTowers       []CellTower
	WifiAccessPoints []WifiAccessPoint
}

type CellTower struct {
	MobileCountryCode int
	MobileNetworkCode int
	LocationAreaCode  int
	CellID            int64
	SignalStrength    int
}

type WifiAccessPoint struct {
	MacAddress     string
	SignalStrength int
}

func (n *Network) AddCellTower(tower CellTower) {
	n.CellTowers = append(n.CellTowers, tower)
}

func (n *Network) AddWifiAccessPoint(ap WifiAccessPoint) {
	n.WifiAccessPoints = append(n.WifiAccessPoints, ap)
}

func (n *Network) Empty() bool {
	return len(n.CellTowers) == 0 && len(n.WifiAccessPoints) == 0
}

func CellTowerFrom(mcc, mnc, lac int, cid int64, rssi int) CellTower {
	return CellTower{
		MobileCountryCode: mcc,
		MobileNetworkCode: mnc,
		LocationAreaCode:  lac,
		CellID:            cid,
		SignalStrength:    rssi,
	}
}

// CellTowerFromCidLac builds a tower from just CID and LAC, filling
// the country and network codes from gateway configuration.
func CellTowerFromCidLac(config *Config, cid int64, lac int) CellTower {
	return CellTower{
		MobileCountryCode: config.DefaultMcc,
		MobileNetworkCode: config.DefaultMnc,
		LocationAreaCode:  lac,
		CellID:            cid,
	}
}

func WifiAccessPointFrom(mac string, rssi int) WifiAccessPoint {
	return WifiAccessPoint{MacAddress: mac, SignalStrength: rssi}
}
