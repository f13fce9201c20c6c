package githubapi

type reviewNode struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
}

type userNode struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

type pullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest *struct {
		Number int      `json:"number"`
		Title  string   `json:"title"`
		User   userNode `json:"user"`
		Head   struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Installation *struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

type installationToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
