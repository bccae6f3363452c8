package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventJSON = `{
  "CodePipeline.job": {
    "id": "11111111-abcd-1111-abcd-111111abcdef",
    "accountId": "111111111111",
    "data": {
      "actionConfiguration": {
        "configuration": {
          "FunctionName": "changeset-replace",
          "UserParameters": "{\"RoleArn\":\"arn:aws:iam::222222222222:role/deployer\"}"
        }
      },
      "inputArtifacts": [
        {
          "name": "BuildOutput",
          "location": {
            "type": "S3",
            "s3Location": {"bucketName": "artifacts", "objectKey": "pipeline/BuildOutput/abc.zip"}
          }
        }
      ]
    }
  }
}`

const jobYAML = `
id: job-2
accountId: "111111111111"
data:
  actionConfiguration:
    configuration:
      UserParameters: '{"RoleArn":"role"}'
  inputArtifacts:
    - name: Source
      location:
        type: S3
        s3Location:
          bucketName: bucket
          objectKey: key.zip
`

func TestDecode_Event(t *testing.T) {
	got, err := Decode([]byte(eventJSON))
	require.NoError(t, err)

	assert.Equal(t, "11111111-abcd-1111-abcd-111111abcdef", got.ID)
	assert.Equal(t, `{"RoleArn":"arn:aws:iam::222222222222:role/deployer"}`, got.Data.ActionConfiguration.Configuration.UserParameters)
	require.Len(t, got.Data.InputArtifacts, 1)
	assert.Equal(t, "BuildOutput", got.Data.InputArtifacts[0].Name)
	assert.Equal(t, "artifacts", got.Data.InputArtifacts[0].Location.S3Location.BucketName)
}

func TestDecode_BareJobYAML(t *testing.T) {
	got, err := Decode([]byte(jobYAML))
	require.NoError(t, err)

	assert.Equal(t, "job-2", got.ID)
	assert.Equal(t, "111111111111", got.AccountID)
	assert.Equal(t, `{"RoleArn":"role"}`, got.Data.ActionConfiguration.Configuration.UserParameters)
	require.Len(t, got.Data.InputArtifacts, 1)
	assert.Equal(t, "key.zip", got.Data.InputArtifacts[0].Location.S3Location.ObjectKey)
}

func TestDecode_Errors(t *testing.T) {
	tests := map[string]string{
		"not yaml": "id: [unterminated",
		"no job id": `{"data": {}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(filename, []byte(eventJSON), 0o600))

	got, err := LoadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "11111111-abcd-1111-abcd-111111abcdef", got.ID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
