package generators

import (
	"fmt"
	"maps"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func mergeLayers(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

func (g *LTEGenerator) token(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[g.rnd.Intn(len(base36))]
	}
	return string(b)
}

func (g *LTEGenerator) phyLayer() map[string]any {
	r := g.rnd
	return map[string]any{"PHY": map[string]any{
		"dl_earfcn": 2850 + r.Intn(1000),
		"ul_earfcn": 2650 + r.Intn(1000),
		"bandwidth": pick(r, []float64{1.4, 3, 5, 10, 15, 20}),
		"pci":       r.Intn(504),
		"measurements": map[string]any{
			"rsrp": -120 + r.Float64()*40,
			"rsrq": -20 + r.Float64()*10,
			"sinr": r.Float64() * 30,
			"cqi":  r.Intn(15) + 1,
			"mcs":  r.Intn(28),
			"bler": r.Float64() * 0.1,
		},
	}}
}

func (g *LTEGenerator) macLayer() map[string]any {
	r := g.rnd
	return map[string]any{"MAC": map[string]any{
		"harq_processes": map[string]any{
			"active_processes": r.Intn(8) + 1,
			"max_processes":    8,
			"process_0": map[string]any{
				"status": "active",
				"rv":     r.Intn(4),
				"ndi":    r.Intn(2),
				"tbs":    r.Intn(2000) + 100,
			},
		},
		"scheduling": map[string]any{
			"dl_sched_interval":     1,
			"ul_sched_interval":     1,
			"sched_requests":        r.Intn(10),
			"buffer_status_reports": r.Intn(5),
		},
		"random_access": map[string]any{
			"ra_attempts": r.Intn(5) + 1,
			"ra_success":  r.Float64() > 0.1,
			"ra_delay":    r.Intn(20),
			"preamble_id": r.Intn(64),
		},
	}}
}

func (g *LTEGenerator) rlcLayer() map[string]any {
	r := g.rnd
	return map[string]any{"RLC": map[string]any{
		"am_mode": map[string]any{
			"sn":    r.Intn(32),
			"vr_r":  r.Intn(32),
			"vr_mr": r.Intn(32),
			"vr_x":  r.Intn(32),
			"vr_ms": r.Intn(32),
			"vr_h":  r.Intn(32),
		},
		"um_mode": map[string]any{
			"sn":    r.Intn(16),
			"vr_ur": r.Intn(16),
			"vr_ux": r.Intn(16),
		},
		"statistics": map[string]any{
			"tx_pdus":         r.Intn(100),
			"rx_pdus":         r.Intn(100),
			"retransmissions": r.Intn(10),
			"out_of_order":    r.Intn(5),
		},
	}}
}

func (g *LTEGenerator) pdcpLayer() map[string]any {
	r := g.rnd
	ciphers := []string{"AES-128", "AES-256", "SNOW-3G"}
	return map[string]any{"PDCP": map[string]any{
		"sequence_numbers": map[string]any{
			"dl_sn": r.Intn(4096),
			"ul_sn": r.Intn(4096),
		},
		"security": map[string]any{
			"encryption":  pick(r, ciphers),
			"integrity":   pick(r, ciphers),
			"key_refresh": r.Float64() > 0.5,
		},
		"statistics": map[string]any{
			"tx_packets":        r.Intn(200),
			"rx_packets":        r.Intn(200),
			"dropped_packets":   r.Intn(10),
			"duplicate_packets": r.Intn(5),
		},
	}}
}

func (g *LTEGenerator) rrcLayer() map[string]any {
	r := g.rnd
	return map[string]any{"RRC": map[string]any{
		"connection_state":    pick(r, []string{"RRC_IDLE", "RRC_CONNECTED"}),
		"establishment_cause": pick(r, []string{"mo-Data", "mo-Signalling", "mt-Access", "emergency"}),
		"ue_identity": map[string]any{
			"imsi": fmt.Sprintf("001010%09d", r.Intn(1000000000)),
			"guti": g.token(16),
		},
		"cell_info": map[string]any{
			"cell_id": r.Intn(100000),
			"tac":     r.Intn(1000),
			"plmn": map[string]any{
				"mcc": r.Intn(1000),
				"mnc": r.Intn(1000),
			},
		},
		"capabilities": map[string]any{
			"lte_capabilities":    true,
			"carrier_aggregation": r.Float64() > 0.3,
			"mimo_capabilities":   pick(r, []string{"2x2", "4x4", "8x8"}),
		},
	}}
}

func (g *LTEGenerator) nasLayer() map[string]any {
	r := g.rnd
	return map[string]any{"NAS": map[string]any{
		"attach_type": pick(r, []string{"EPS_ATTACH", "EPS_DETACH"}),
		"security_context": map[string]any{
			"ksi":    r.Intn(7),
			"k_asme": g.token(16),
			"sqn":    r.Intn(100000),
		},
		"eps_bearer": map[string]any{
			"bearer_id": r.Intn(16),
			"qci":       r.Intn(9) + 1,
			"apn":       pick(r, []string{"internet", "ims", "emergency"}),
		},
	}}
}
