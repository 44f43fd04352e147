package models

import "fmt"

// Catalog holds the static administrative reference tables: province
// code to province name, and the INE codes of the 52 provincial
// capitals. It is passed explicitly to the components that need it.
type Catalog struct {
	provinces map[string]string
	capitals  map[string]struct{}
}

func NewCatalog(provinces map[string]string, capitals []string) *Catalog {
	capSet := make(map[string]struct{}, len(capitals))
	for _, c := range capitals {
		capSet[c] = struct{}{}
	}
	return &Catalog{provinces: provinces, capitals: capSet}
}

// ProvinceName resolves a 2-digit province code. Unknown codes get a
// synthetic name so the municipality is not dropped.
func (c *Catalog) ProvinceName(code string) string {
	if name, ok := c.provinces[code]; ok {
		return name
	}
	return fmt.Sprintf("Provincia %s", code)
}

// IsCapital reports whether the 5-digit code is a provincial capital.
func (c *Catalog) IsCapital(code string) bool {
	_, ok := c.capitals[code]
	return ok
}

// DefaultCatalog returns the Spanish province and capital tables.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string]string{
		"01": "Álava", "02": "Albacete", "03": "Alicante", "04": "Almería",
		"05": "Ávila", "06": "Badajoz", "07": "Baleares", "08": "Barcelona",
		"09": "Burgos", "10": "Cáceres", "11": "Cádiz", "12": "Castellón",
		"13": "Ciudad Real", "14": "Córdoba", "15": "A Coruña", "16": "Cuenca",
		"17": "Girona", "18": "Granada", "19": "Guadalajara", "20": "Gipuzkoa",
		"21": "Huelva", "22": "Huesca", "23": "Jaén", "24": "León",
		"25": "Lleida", "26": "La Rioja", "27": "Lugo", "28": "Madrid",
		"29": "Málaga", "30": "Murcia", "31": "Navarra", "32": "Ourense",
		"33": "Asturias", "34": "Palencia", "35": "Las Palmas", "36": "Pontevedra",
		"37": "Salamanca", "38": "S.C. Tenerife", "39": "Cantabria", "40": "Segovia",
		"41": "Sevilla", "42": "Soria", "43": "Tarragona", "44": "Teruel",
		"45": "Toledo", "46": "Valencia", "47": "Valladolid", "48": "Bizkaia",
		"49": "Zamora", "50": "Zaragoza", "51": "Ceuta", "52": "Melilla",
	}, []string{
		"15030", "02003", "03014", "04013", "01059", "33044", "05019", "06015",
		"07040", "08019", "48020", "09059", "10037", "11012", "39075", "12040",
		"51001", "13034", "14021", "16078", "20069", "17079", "18087", "19130",
		"21041", "22125", "23050", "24089", "25120", "27028", "28079", "29067",
		"52001", "30030", "31201", "32054", "34120", "35016", "36038", "26089",
		"37274", "38038", "40194", "41091", "42173", "43148", "44216", "45168",
		"46250", "47186", "49275", "50297",
	})
}
