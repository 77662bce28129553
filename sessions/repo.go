package sessions

type Repo interface {
	Upsert(sessionID string, identity Identity) error
	Get(sessionID string) (Identity, error)
	Delete(sessionID string) error
}
