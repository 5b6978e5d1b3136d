package loadout

// DefaultCatalog returns the built-in weapon catalog. Stats are normalized
// 0-100; pick rates approximate current ladder usage and drive the meta
// report ordering.
func DefaultCatalog() []Weapon {
	return []Weapon{
		{
			ID: "ram-7", Name: "RAM-7", Category: CategoryAR, Tier: "S",
			Stats:    Stats{Damage: 74, Range: 68, Accuracy: 72, Mobility: 65, Control: 70, FireRate: 78},
			PickRate: 0.182,
			Slots:    []string{"optic", "barrel", "muzzle", "underbarrel", "magazine"},
		},
		{
			ID: "mtz-556", Name: "MTZ-556", Category: CategoryAR, Tier: "A",
			Stats:    Stats{Damage: 70, Range: 72, Accuracy: 75, Mobility: 60, Control: 74, FireRate: 66},
			PickRate: 0.094,
			Slots:    []string{"optic", "barrel", "muzzle", "underbarrel", "magazine"},
		},
		{
			ID: "holger-556", Name: "Holger 556", Category: CategoryAR, Tier: "A",
			Stats:    Stats{Damage: 72, Range: 76, Accuracy: 70, Mobility: 55, Control: 78, FireRate: 62},
			PickRate: 0.071,
			Slots:    []string{"optic", "barrel", "muzzle", "underbarrel", "magazine"},
		},
		{
			ID: "sva-545", Name: "SVA 545", Category: CategoryAR, Tier: "B",
			Stats:    Stats{Damage: 68, Range: 70, Accuracy: 66, Mobility: 62, Control: 64, FireRate: 72},
			PickRate: 0.038,
			Slots:    []string{"optic", "barrel", "muzzle", "underbarrel", "magazine"},
		},
		{
			ID: "striker-9", Name: "Striker 9", Category: CategorySMG, Tier: "S",
			Stats:    Stats{Damage: 62, Range: 45, Accuracy: 60, Mobility: 85, Control: 68, FireRate: 84},
			PickRate: 0.156,
			Slots:    []string{"optic", "barrel", "muzzle", "magazine", "stock"},
		},
		{
			ID: "wsp-swarm", Name: "WSP Swarm", Category: CategorySMG, Tier: "A",
			Stats:    Stats{Damage: 58, Range: 38, Accuracy: 55, Mobility: 92, Control: 54, FireRate: 95},
			PickRate: 0.088,
			Slots:    []string{"optic", "barrel", "muzzle", "magazine", "stock"},
		},
		{
			ID: "amr9", Name: "AMR9", Category: CategorySMG, Tier: "B",
			Stats:    Stats{Damage: 55, Range: 52, Accuracy: 64, Mobility: 78, Control: 70, FireRate: 74},
			PickRate: 0.042,
			Slots:    []string{"optic", "barrel", "muzzle", "magazine", "stock"},
		},
		{
			ID: "pulemyot-762", Name: "Pulemyot 762", Category: CategoryLMG, Tier: "A",
			Stats:    Stats{Damage: 80, Range: 82, Accuracy: 62, Mobility: 35, Control: 58, FireRate: 60},
			PickRate: 0.047,
			Slots:    []string{"optic", "barrel", "muzzle", "underbarrel", "magazine"},
		},
		{
			ID: "taq-evolvere", Name: "TAQ Evolvere", Category: CategoryLMG, Tier: "B",
			Stats:    Stats{Damage: 76, Range: 78, Accuracy: 60, Mobility: 40, Control: 62, FireRate: 64},
			PickRate: 0.029,
			Slots:    []string{"optic", "barrel", "muzzle", "underbarrel", "magazine"},
		},
		{
			ID: "xrk-stalker", Name: "XRK Stalker", Category: CategorySniper, Tier: "S",
			Stats:    Stats{Damage: 98, Range: 95, Accuracy: 88, Mobility: 38, Control: 45, FireRate: 12},
			PickRate: 0.112,
			Slots:    []string{"optic", "barrel", "muzzle", "stock"},
		},
		{
			ID: "katt-amr", Name: "KATT-AMR", Category: CategorySniper, Tier: "A",
			Stats:    Stats{Damage: 100, Range: 100, Accuracy: 85, Mobility: 25, Control: 40, FireRate: 8},
			PickRate: 0.064,
			Slots:    []string{"optic", "barrel", "muzzle", "stock"},
		},
		{
			ID: "kvd-enforcer", Name: "KVD Enforcer", Category: CategoryMarksman, Tier: "B",
			Stats:    Stats{Damage: 85, Range: 84, Accuracy: 80, Mobility: 48, Control: 55, FireRate: 35},
			PickRate: 0.026,
			Slots:    []string{"optic", "barrel", "muzzle", "magazine"},
		},
		{
			ID: "lockwood-680", Name: "Lockwood 680", Category: CategoryShotgun, Tier: "B",
			Stats:    Stats{Damage: 92, Range: 20, Accuracy: 40, Mobility: 70, Control: 50, FireRate: 25},
			PickRate: 0.033,
			Slots:    []string{"barrel", "muzzle", "stock", "laser"},
		},
		{
			ID: "haymaker", Name: "Haymaker", Category: CategoryShotgun, Tier: "C",
			Stats:    Stats{Damage: 78, Range: 18, Accuracy: 35, Mobility: 66, Control: 48, FireRate: 55},
			PickRate: 0.017,
			Slots:    []string{"barrel", "muzzle", "stock", "magazine"},
		},
		{
			ID: "renetti", Name: "Renetti", Category: CategoryPistol, Tier: "A",
			Stats:    Stats{Damage: 48, Range: 30, Accuracy: 58, Mobility: 95, Control: 62, FireRate: 80},
			PickRate: 0.051,
			Slots:    []string{"optic", "barrel", "muzzle", "magazine"},
		},
		{
			ID: "cor-45", Name: "COR-45", Category: CategoryPistol, Tier: "C",
			Stats:    Stats{Damage: 52, Range: 28, Accuracy: 55, Mobility: 93, Control: 58, FireRate: 45},
			PickRate: 0.012,
			Slots:    []string{"optic", "barrel", "muzzle", "magazine"},
		},
	}
}

// DefaultAttachments returns the built-in attachment catalog.
func DefaultAttachments() []Attachment {
	return []Attachment{
		{ID: "vt7-spiritfire", Name: "VT-7 Spiritfire Suppressor", Slot: "muzzle",
			Effects: map[string]int{"range": 8, "control": 4, "mobility": -5}},
		{ID: "chewk-angled", Name: "Chewk Angled Grip", Slot: "underbarrel",
			Effects: map[string]int{"control": 10, "accuracy": 5, "mobility": -3}},
		{ID: "slate-reflector", Name: "Slate Reflector", Slot: "optic",
			Effects: map[string]int{"accuracy": 6}},
		{ID: "40-round", Name: "40 Round Mag", Slot: "magazine",
			Effects: map[string]int{"mobility": -4}},
		{ID: "ravage-8", Name: "Ravage-8 Stock", Slot: "stock",
			Effects: map[string]int{"mobility": 8, "control": -4}},
		{ID: "xten-grip", Name: "XTEN Phantom Grip", Slot: "grip",
			Effects: map[string]int{"mobility": 5, "accuracy": -2}},
		{ID: "corio-lazer", Name: "Corio LAZ-44", Slot: "laser",
			Effects: map[string]int{"accuracy": 8, "mobility": 3}},
		{ID: "bruen-heavy", Name: "Bruen Heavy Support Barrel", Slot: "barrel",
			Effects: map[string]int{"range": 12, "control": 6, "mobility": -8}},
	}
}
