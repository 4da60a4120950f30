// Package labels maps detector class ids to names and defines which names
// count as vehicles.
package labels

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Vehicles is the set of class names the count queries accept.
var Vehicles = map[string]bool{
	"caravan":      true,
	"truck":        true,
	"autorickshaw": true,
	"motorcycle":   true,
	"car":          true,
	"bicycle":      true,
	"bus":          true,
}

// VehicleTypes returns the Vehicles keys in a fixed order for display.
func VehicleTypes() []string {
	return []string{"autorickshaw", "bicycle", "bus", "car", "caravan", "motorcycle", "truck"}
}

// IsVehicle reports whether name is in Vehicles.
func IsVehicle(name string) bool {
	return Vehicles[name]
}

// Table resolves class ids by position.
type Table []string

// Label returns the name for id, or "class_<id>" when id is out of range.
func (t Table) Label(id int) string {
	if id >= 0 && id < len(t) && t[id] != "" {
		return t[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Load reads one class name per line. Blank lines at the end of the file
// are ignored; blank lines in the middle keep their id.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var t Table
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		t = append(t, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	for len(t) > 0 && t[len(t)-1] == "" {
		t = t[:len(t)-1]
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("labels %s: no class names", path)
	}
	return t, nil
}

// LoadOrDefault loads path, or returns COCO when path is empty.
func LoadOrDefault(path string) (Table, error) {
	if path == "" {
		return COCO, nil
	}
	return Load(path)
}

// COCO is the class table of the stock YOLO detection weights.
var COCO = Table{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}
