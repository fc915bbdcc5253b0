package testcase

import "strings"

type Subcategory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TestType string `json:"test_type"`
	Count    int    `json:"count"`
}

type Category struct {
	ID            string        `json:"id"`
	Key           string        `json:"key"`
	Name          string        `json:"name"`
	TotalCount    int           `json:"total_count"`
	Subcategories []Subcategory `json:"subcategories"`
}

func sub(id, name, testType string) Subcategory {
	return Subcategory{ID: id, Name: name, TestType: testType}
}

// CategoryTree returns the 3GPP category tree with zero counts.
func CategoryTree() []Category {
	return []Category{
		{ID: "5g-nr", Key: "5G_NR", Name: "5G NR", Subcategories: []Subcategory{
			sub("5gnr-functional", "Functional", "functional"),
			sub("5gnr-performance", "Performance", "performance"),
			sub("5gnr-rf", "RF", "rf"),
			sub("5gnr-stability", "Stability", "stability"),
		}},
		{ID: "4g-lte", Key: "4G_LTE", Name: "4G LTE", Subcategories: []Subcategory{
			sub("lte-functional", "Functional", "functional"),
			sub("lte-performance", "Performance", "performance"),
			sub("lte-rf", "RF", "rf"),
			sub("lte-stability", "Stability", "stability"),
		}},
		{ID: "ims", Key: "IMS_SIP", Name: "IMS/VoLTE/VoNR", Subcategories: []Subcategory{
			sub("ims-functional", "Functional", "functional"),
			sub("ims-performance-stability", "Performance/Stability", "performance"),
		}},
		{ID: "oran", Key: "O_RAN", Name: "O-RAN", Subcategories: []Subcategory{
			sub("oran-functional", "Functional", "functional"),
			sub("oran-performance", "Performance", "performance"),
		}},
		{ID: "nbiot", Key: "NB_IoT", Name: "NB-IoT", Subcategories: []Subcategory{
			sub("nbiot-functional", "Functional", "functional"),
			sub("nbiot-performance", "Performance", "performance"),
		}},
		{ID: "v2x", Key: "V2X", Name: "V2X", Subcategories: []Subcategory{
			sub("v2x-functional", "Functional", "functional"),
			sub("v2x-performance", "Performance", "performance"),
		}},
		{ID: "ntn", Key: "NTN", Name: "NTN", Subcategories: []Subcategory{
			sub("ntn-functional", "Functional", "functional"),
			sub("ntn-performance", "Performance", "performance"),
		}},
	}
}

// CountCategories fills the tree counts. A case belongs to a category when
// its category starts with the category key (4G_LTE_RRC belongs to 4G_LTE).
func CountCategories(cases []TestCase) []Category {
	tree := CategoryTree()
	for _, tc := range cases {
		for i := range tree {
			if !strings.HasPrefix(strings.ToUpper(tc.Category), strings.ToUpper(tree[i].Key)) {
				continue
			}
			tree[i].TotalCount++
			for j := range tree[i].Subcategories {
				if strings.EqualFold(tree[i].Subcategories[j].TestType, tc.TestType) {
					tree[i].Subcategories[j].Count++
				}
			}
			break
		}
	}
	return tree
}
