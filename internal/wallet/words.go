package wallet

// words is the recovery phrase vocabulary. Its length is a power of two so
// each word encodes exactly eight bits.
var words = [256]string{
	"able", "acid", "aged", "also", "area", "army", "away", "baby",
	"back", "ball", "band", "bank", "base", "bath", "bear", "beat",
	"bell", "belt", "best", "bird", "blow", "blue", "boat", "body",
	"bond", "bone", "book", "boom", "born", "boss", "both", "bowl",
	"bulk", "burn", "bush", "busy", "cake", "call", "calm", "came",
	"camp", "card", "care", "cart", "case", "cash", "cast", "cell",
	"chat", "chip", "city", "clay", "club", "coal", "coat", "code",
	"cold", "come", "cook", "cool", "cope", "copy", "core", "cost",
	"crew", "crop", "dark", "data", "date", "dawn", "days", "dead",
	"deal", "dear", "debt", "deep", "deny", "desk", "dial", "diet",
	"dirt", "disc", "dish", "dock", "does", "done", "door", "dose",
	"down", "draw", "drew", "drop", "drum", "dual", "duke", "dust",
	"duty", "each", "earn", "ease", "east", "easy", "edge", "else",
	"even", "ever", "evil", "exit", "face", "fact", "fail", "fair",
	"fall", "farm", "fast", "fate", "fear", "feed", "feel", "feet",
	"fell", "felt", "file", "fill", "film", "find", "fine", "fire",
	"firm", "fish", "five", "flat", "flow", "food", "foot", "form",
	"fort", "four", "free", "from", "fuel", "full", "fund", "gain",
	"game", "gate", "gave", "gear", "gene", "gift", "girl", "give",
	"glad", "goal", "goes", "gold", "golf", "gone", "good", "gray",
	"grew", "grid", "grow", "gulf", "hair", "half", "hall", "hand",
	"hang", "hard", "harm", "hate", "have", "head", "hear", "heat",
	"held", "hell", "help", "here", "hero", "high", "hill", "hire",
	"hold", "hole", "holy", "home", "hope", "host", "hour", "huge",
	"hung", "hunt", "hurt", "idea", "inch", "into", "iron", "item",
	"jack", "jane", "jean", "john", "join", "jump", "jury", "just",
	"keen", "keep", "kent", "kept", "kick", "kind", "king", "knee",
	"knew", "know", "lack", "lady", "laid", "lake", "land", "lane",
	"last", "late", "lead", "left", "less", "life", "lift", "like",
	"line", "link", "list", "live", "load", "loan", "lock", "logo",
	"long", "look", "lord", "lose", "loss", "lost", "love", "luck",
	"made", "mail", "main", "make", "male", "many", "mark", "mass",
}
