package actions

// Site UI selectors. These track the current site markup and are the first
// thing to re-verify when an action starts failing with element-not-found.
const (
	// Chat page
	selMessageComposer = `div.ProseMirror[data-placeholder="Type a message..."]`
	selSendButton      = `button[at-attr="send_btn"]`

	// Post creation page
	selCaptionField = `div[aria-label="Textbox field"]`
	selFileInput    = `input[type="file"]`
	selSubmitPost   = `button[at-attr="submit_post"]`
	postCreatePath  = "/posts/create"
)
