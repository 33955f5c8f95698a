package clients

type Repo interface {
	Upsert(clientData *Client) error
	Get(clientID string) (*Client, error)
	List() ([]*Client, error)
}
