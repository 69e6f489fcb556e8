package youtube

// categoryNames maps the provider's numeric category ids to display names.
var categoryNames = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"15": "Pets & Animals",
	"17": "Sports",
	"19": "Travel & Events",
	"20": "Gaming",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "Howto & Style",
	"27": "Education",
	"28": "Science & Technology",
	"29": "Nonprofits & Activism",
}

// DefaultCategory is used when the provider reports an unknown category id.
const DefaultCategory = "People & Blogs"

// CategoryName resolves a category id to its display name.
func CategoryName(id string) string {
	if name, ok := categoryNames[id]; ok {
		return name
	}
	return DefaultCategory
}
