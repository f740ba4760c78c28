package announcement

import "fmt"

var regionNames = map[string]string{
	"11": "서울특별시",
	"26": "부산광역시",
	"27": "대구광역시",
	"28": "인천광역시",
	"29": "광주광역시",
	"30": "대전광역시",
	"31": "울산광역시",
	"36": "세종특별자치시",
	"41": "경기도",
	"42": "강원특별자치도",
	"43": "충청북도",
	"44": "충청남도",
	"45": "전북특별자치도",
	"46": "전라남도",
	"47": "경상북도",
	"48": "경상남도",
	"49": "제주특별자치도",
	"50": "제주특별자치도",
}

// RegionName returns the display name of a region code, or an empty string when unknown.
func RegionName(code string) string {
	if IsNationalRegion(code) {
		return "전국"
	}
	return regionNames[code]
}

// DescribeRegion renders a region code with its name for human-readable reasons.
func DescribeRegion(code string) string {
	if code == "" {
		return "none"
	}
	if name := RegionName(code); name != "" {
		return fmt.Sprintf("%s (%s)", code, name)
	}
	return code
}
