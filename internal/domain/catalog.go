package domain

// Property holds the fixed facts the concierge persona is allowed to state.
type Property struct {
	Name          string   `yaml:"name" json:"name"`
	Location      string   `yaml:"location" json:"location"`
	WhaleSeason   string   `yaml:"whaleSeason" json:"whaleSeason"`
	Landmarks     []string `yaml:"landmarks" json:"landmarks"`
	PirateFigures []string `yaml:"pirateFigures" json:"pirateFigures"`
}

// Room is a bookable bungalow or guest room.
type Room struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Price       int      `yaml:"price" json:"price"`
	Size        string   `yaml:"size" json:"size"`
	Amenities   []string `yaml:"amenities" json:"amenities"`
	Images      []string `yaml:"images" json:"images"`
	NightImages []string `yaml:"nightImages" json:"nightImages,omitempty"`
}

// Offer is an activity or service package.
type Offer struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Title      string `yaml:"title" json:"title"`
	Subtitle   string `yaml:"subtitle" json:"subtitle"`
	Discount   string `yaml:"discount" json:"discount"`
	Image      string `yaml:"image" json:"image"`
	NightImage string `yaml:"nightImage" json:"nightImage,omitempty"`
}

// Event is a dated special event.
type Event struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Date        string `yaml:"date" json:"date"`
	Tag         string `yaml:"tag" json:"tag"`
	Description string `yaml:"description" json:"description"`
	Image       string `yaml:"image" json:"image"`
	NightImage  string `yaml:"nightImage" json:"nightImage,omitempty"`
}
